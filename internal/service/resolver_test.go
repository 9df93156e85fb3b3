package service

import (
	"context"
	"errors"
	"testing"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ingredient(recipeID, itemID uuid.UUID, qty string) model.RecipeIngredient {
	return model.RecipeIngredient{
		RecipeID:        recipeID,
		InventoryItemID: itemID,
		Quantity:        dec(qty),
		Unit:            "kg",
		IsActive:        true,
	}
}

func subRecipeEdge(parentID, childID uuid.UUID, qty string) model.RecipeSubRecipe {
	return model.RecipeSubRecipe{
		ParentRecipeID: parentID,
		SubRecipeID:    childID,
		Quantity:       dec(qty),
		IsActive:       true,
	}
}

func activeRecipe(menuItemID uuid.UUID) *model.Recipe {
	return &model.Recipe{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		MenuItemID: menuItemID,
		Status:     model.RecipeStatusActive,
	}
}

func TestResolveFlatRecipe(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()
	flourID := uuid.New()

	bread := activeRecipe(menuItemID)
	bread.Ingredients = []model.RecipeIngredient{ingredient(bread.ID, flourID, "2")}
	store.addRecipe(bread)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("3")},
	})
	require.NoError(t, err)
	require.Len(t, resolved.Requirements, 1)
	assert.Empty(t, resolved.ItemsWithoutRecipe)

	req := resolved.Requirements[flourID]
	require.NotNil(t, req)
	assert.Equal(t, "6", req.Quantity.String(), "3 units of bread at 2kg flour each")
	assert.Equal(t, "kg", req.Unit)
	require.Len(t, req.Sources, 1)
	assert.Equal(t, bread.ID, req.Sources[0].RecipeID)
	assert.Equal(t, menuItemID, req.Sources[0].MenuItemID)
}

func TestResolveNestedSubRecipesMultiplyQuantities(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()
	tomatoID := uuid.New()

	sauce := &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
	sauce.Ingredients = []model.RecipeIngredient{ingredient(sauce.ID, tomatoID, "0.2")}
	store.addRecipe(sauce)

	burger := activeRecipe(menuItemID)
	burger.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(burger.ID, sauce.ID, "0.5")}
	store.addRecipe(burger)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("2")},
	})
	require.NoError(t, err)

	req := resolved.Requirements[tomatoID]
	require.NotNil(t, req)
	assert.Equal(t, "0.2", req.Quantity.String(), "0.2 * 0.5 * 2 orders")
}

func TestResolveDiamondDependencyIsNotACycle(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()
	saltID := uuid.New()

	shared := &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
	shared.Ingredients = []model.RecipeIngredient{ingredient(shared.ID, saltID, "1")}
	store.addRecipe(shared)

	left := &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
	left.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(left.ID, shared.ID, "1")}
	store.addRecipe(left)

	right := &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
	right.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(right.ID, shared.ID, "1")}
	store.addRecipe(right)

	top := activeRecipe(menuItemID)
	top.SubRecipes = []model.RecipeSubRecipe{
		subRecipeEdge(top.ID, left.ID, "1"),
		subRecipeEdge(top.ID, right.ID, "1"),
	}
	store.addRecipe(top)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("1")},
	})
	require.NoError(t, err, "reaching the same sub-recipe through two branches is legal")

	req := resolved.Requirements[saltID]
	require.NotNil(t, req)
	assert.Equal(t, "2", req.Quantity.String(), "both branches contribute")
	assert.Len(t, req.Sources, 2)
}

func TestResolveDetectsCycleWithPath(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()

	recipeA := activeRecipe(menuItemID)
	recipeB := &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
	recipeA.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(recipeA.ID, recipeB.ID, "1")}
	recipeB.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(recipeB.ID, recipeA.ID, "1")}
	store.addRecipe(recipeA)
	store.addRecipe(recipeB)

	resolver := NewRecipeResolver(store, zap.NewNop())
	_, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("1")},
	})
	require.Error(t, err)

	var cycleErr *apperr.RecipeCycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []uuid.UUID{recipeA.ID, recipeB.ID, recipeA.ID}, cycleErr.Path)
	assert.False(t, cycleErr.SelfReference)
}

func TestResolveSkipsOptionalAndInactiveIngredients(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()
	requiredID := uuid.New()
	optionalID := uuid.New()
	inactiveID := uuid.New()

	recipe := activeRecipe(menuItemID)
	optional := ingredient(recipe.ID, optionalID, "1")
	optional.IsOptional = true
	inactive := ingredient(recipe.ID, inactiveID, "1")
	inactive.IsActive = false
	recipe.Ingredients = []model.RecipeIngredient{
		ingredient(recipe.ID, requiredID, "1"),
		optional,
		inactive,
	}
	store.addRecipe(recipe)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("1")},
	})
	require.NoError(t, err)
	assert.Len(t, resolved.Requirements, 1)
	assert.NotNil(t, resolved.Requirements[requiredID])
	assert.Nil(t, resolved.Requirements[optionalID])
	assert.Nil(t, resolved.Requirements[inactiveID])
}

func TestResolveReportsItemsWithoutRecipe(t *testing.T) {
	store := newFakeStore()
	withRecipeID := uuid.New()
	withoutRecipeID := uuid.New()
	flourID := uuid.New()

	recipe := activeRecipe(withRecipeID)
	recipe.Ingredients = []model.RecipeIngredient{ingredient(recipe.ID, flourID, "1")}
	store.addRecipe(recipe)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: withRecipeID, Quantity: dec("1")},
		{MenuItemID: withoutRecipeID, Quantity: dec("2")},
	})
	require.NoError(t, err, "a missing recipe is reported, not fatal")
	assert.Equal(t, []uuid.UUID{withoutRecipeID}, resolved.ItemsWithoutRecipe)
	assert.Len(t, resolved.Requirements, 1)
}

func TestResolveIgnoresInactiveRecipes(t *testing.T) {
	store := newFakeStore()
	menuItemID := uuid.New()

	recipe := activeRecipe(menuItemID)
	recipe.Status = model.RecipeStatusInactive
	store.addRecipe(recipe)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: menuItemID, Quantity: dec("1")},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{menuItemID}, resolved.ItemsWithoutRecipe)
}

func TestResolveAccumulatesAcrossOrderItems(t *testing.T) {
	store := newFakeStore()
	breadMenuID := uuid.New()
	pizzaMenuID := uuid.New()
	flourID := uuid.New()

	bread := activeRecipe(breadMenuID)
	bread.Ingredients = []model.RecipeIngredient{ingredient(bread.ID, flourID, "2")}
	store.addRecipe(bread)

	pizza := activeRecipe(pizzaMenuID)
	pizza.Ingredients = []model.RecipeIngredient{ingredient(pizza.ID, flourID, "0.5")}
	store.addRecipe(pizza)

	resolver := NewRecipeResolver(store, zap.NewNop())
	resolved, err := resolver.ResolveRequiredIngredients(context.Background(), []OrderItem{
		{MenuItemID: breadMenuID, Quantity: dec("2")},
		{MenuItemID: pizzaMenuID, Quantity: dec("4")},
	})
	require.NoError(t, err)

	req := resolved.Requirements[flourID]
	require.NotNil(t, req)
	assert.Equal(t, "6", req.Quantity.String(), "2*2 from bread plus 4*0.5 from pizza")
	require.Len(t, req.Sources, 2)
}

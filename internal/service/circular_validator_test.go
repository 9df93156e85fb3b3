package service

import (
	"context"
	"errors"
	"testing"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func emptyRecipe() *model.Recipe {
	return &model.Recipe{BaseModel: model.BaseModel{ID: uuid.New()}, Status: model.RecipeStatusActive}
}

func TestValidateRejectsSelfReference(t *testing.T) {
	store := newFakeStore()
	recipe := emptyRecipe()
	store.addRecipe(recipe)

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateNoCircularReference(context.Background(), recipe.ID, recipe.ID)
	require.Error(t, err)

	var cycleErr *apperr.RecipeCycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.True(t, cycleErr.SelfReference)
	assert.Equal(t, []uuid.UUID{recipe.ID, recipe.ID}, cycleErr.Path)
}

func TestValidateRejectsTwoNodeCycle(t *testing.T) {
	store := newFakeStore()
	recipeA := emptyRecipe()
	recipeB := emptyRecipe()
	// B already contains A; adding B under A would close A -> B -> A
	recipeB.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(recipeB.ID, recipeA.ID, "1")}
	store.addRecipe(recipeA)
	store.addRecipe(recipeB)

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateNoCircularReference(context.Background(), recipeA.ID, recipeB.ID)
	require.Error(t, err)

	var cycleErr *apperr.RecipeCycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []uuid.UUID{recipeA.ID, recipeB.ID, recipeA.ID}, cycleErr.Path)
	assert.False(t, cycleErr.SelfReference)
}

func TestValidateRejectsDeepCycle(t *testing.T) {
	store := newFakeStore()
	recipeA := emptyRecipe()
	recipeB := emptyRecipe()
	recipeC := emptyRecipe()
	// B -> C -> A exists; adding B under A closes the loop
	recipeB.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(recipeB.ID, recipeC.ID, "1")}
	recipeC.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(recipeC.ID, recipeA.ID, "1")}
	store.addRecipe(recipeA)
	store.addRecipe(recipeB)
	store.addRecipe(recipeC)

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateNoCircularReference(context.Background(), recipeA.ID, recipeB.ID)
	require.Error(t, err)

	var cycleErr *apperr.RecipeCycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []uuid.UUID{recipeA.ID, recipeB.ID, recipeC.ID, recipeA.ID}, cycleErr.Path)
}

func TestValidateAllowsDiamond(t *testing.T) {
	store := newFakeStore()
	parent := emptyRecipe()
	left := emptyRecipe()
	right := emptyRecipe()
	shared := emptyRecipe()
	left.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(left.ID, shared.ID, "1")}
	right.SubRecipes = []model.RecipeSubRecipe{subRecipeEdge(right.ID, shared.ID, "1")}
	for _, r := range []*model.Recipe{parent, left, right, shared} {
		store.addRecipe(r)
	}

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateSubRecipeSet(context.Background(), parent.ID, []uuid.UUID{left.ID, right.ID})
	require.NoError(t, err, "two paths to the same sub-recipe are not a cycle")
}

func TestValidateIgnoresInactiveEdges(t *testing.T) {
	store := newFakeStore()
	recipeA := emptyRecipe()
	recipeB := emptyRecipe()
	edge := subRecipeEdge(recipeB.ID, recipeA.ID, "1")
	edge.IsActive = false
	recipeB.SubRecipes = []model.RecipeSubRecipe{edge}
	store.addRecipe(recipeA)
	store.addRecipe(recipeB)

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateNoCircularReference(context.Background(), recipeA.ID, recipeB.ID)
	require.NoError(t, err, "a soft-deleted edge cannot close a cycle")
}

func TestValidateSetRejectsDuplicates(t *testing.T) {
	store := newFakeStore()
	parent := emptyRecipe()
	child := emptyRecipe()
	store.addRecipe(parent)
	store.addRecipe(child)

	validator := NewCircularValidator(store, zap.NewNop())
	err := validator.ValidateSubRecipeSet(context.Background(), parent.ID, []uuid.UUID{child.ID, child.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sub-recipe")
}

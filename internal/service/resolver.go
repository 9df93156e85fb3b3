package service

import (
	"context"
	"fmt"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItem is one (menu item, quantity) line of an order.
type OrderItem struct {
	MenuItemID uuid.UUID       `json:"menu_item_id" validate:"uuid_required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// RequirementSource records which recipe, reached on behalf of which order
// item, contributed a portion of an ingredient requirement.
type RequirementSource struct {
	RecipeID   uuid.UUID       `json:"recipe_id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// IngredientRequirement is the flattened total a set of order items needs
// of one inventory item, with provenance.
type IngredientRequirement struct {
	InventoryItemID uuid.UUID           `json:"inventory_item_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Unit            string              `json:"unit"`
	Sources         []RequirementSource `json:"sources"`
}

// ResolvedRequirements is the resolver output: per-ingredient totals plus
// the menu items that had no recipe. Absence of a recipe is reported, not
// fatal; the caller decides.
type ResolvedRequirements struct {
	Requirements       map[uuid.UUID]*IngredientRequirement
	ItemsWithoutRecipe []uuid.UUID
}

type RecipeResolver interface {
	ResolveRequiredIngredients(ctx context.Context, items []OrderItem) (*ResolvedRequirements, error)
}

type recipeResolver struct {
	store  repository.Store
	logger *zap.Logger
}

func NewRecipeResolver(store repository.Store, logger *zap.Logger) RecipeResolver {
	return &recipeResolver{store: store, logger: logger}
}

func (r *recipeResolver) ResolveRequiredIngredients(ctx context.Context, items []OrderItem) (*ResolvedRequirements, error) {
	// One bulk fetch for every distinct menu item in the order
	seen := make(map[uuid.UUID]bool, len(items))
	menuItemIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !seen[item.MenuItemID] {
			seen[item.MenuItemID] = true
			menuItemIDs = append(menuItemIDs, item.MenuItemID)
		}
	}

	recipes, err := r.store.Recipes().FindActiveByMenuItemIDs(ctx, menuItemIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch recipes: %w", err)
	}
	recipeByMenuItem := make(map[uuid.UUID]*model.Recipe, len(recipes))
	for i := range recipes {
		recipeByMenuItem[recipes[i].MenuItemID] = &recipes[i]
	}

	resolved := &ResolvedRequirements{
		Requirements: make(map[uuid.UUID]*IngredientRequirement),
	}
	missing := make(map[uuid.UUID]bool)

	for _, item := range items {
		recipe, ok := recipeByMenuItem[item.MenuItemID]
		if !ok {
			if !missing[item.MenuItemID] {
				missing[item.MenuItemID] = true
				resolved.ItemsWithoutRecipe = append(resolved.ItemsWithoutRecipe, item.MenuItemID)
			}
			continue
		}
		// Each order item walks the graph on a fresh path
		path := pathState{
			ids:    []uuid.UUID{recipe.ID},
			onPath: map[uuid.UUID]bool{recipe.ID: true},
		}
		if err := r.expand(ctx, recipe, item.MenuItemID, item.Quantity, path, resolved); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

// pathState tracks the recipes visited on the current walk from an order
// item down the sub-recipe graph. It is copied, never shared, when a
// recipe fans out into several sub-recipes: two sibling branches reaching
// the same sub-recipe (a diamond) are legal, only a back-edge onto the
// current path is a cycle.
type pathState struct {
	ids    []uuid.UUID
	onPath map[uuid.UUID]bool
}

func (p pathState) with(id uuid.UUID) pathState {
	ids := make([]uuid.UUID, len(p.ids), len(p.ids)+1)
	copy(ids, p.ids)
	onPath := make(map[uuid.UUID]bool, len(p.onPath)+1)
	for k := range p.onPath {
		onPath[k] = true
	}
	onPath[id] = true
	return pathState{ids: append(ids, id), onPath: onPath}
}

func (r *recipeResolver) expand(ctx context.Context, recipe *model.Recipe, menuItemID uuid.UUID, multiplier decimal.Decimal, path pathState, resolved *ResolvedRequirements) error {
	for _, ing := range recipe.Ingredients {
		// Optional ingredients never count; inactive edges are soft-deleted
		if ing.IsOptional || !ing.IsActive {
			continue
		}
		required := ing.Quantity.Mul(multiplier)
		req, ok := resolved.Requirements[ing.InventoryItemID]
		if !ok {
			req = &IngredientRequirement{
				InventoryItemID: ing.InventoryItemID,
				Quantity:        decimal.Zero,
				Unit:            ing.Unit,
			}
			resolved.Requirements[ing.InventoryItemID] = req
		}
		req.Quantity = req.Quantity.Add(required)
		req.Sources = append(req.Sources, RequirementSource{
			RecipeID:   recipe.ID,
			MenuItemID: menuItemID,
			Quantity:   required,
		})
	}

	for _, edge := range recipe.SubRecipes {
		if !edge.IsActive {
			continue
		}
		if path.onPath[edge.SubRecipeID] {
			cycle := append(append([]uuid.UUID{}, path.ids...), edge.SubRecipeID)
			r.logger.Error("recipe graph contains a cycle",
				zap.String("recipe_id", recipe.ID.String()),
				zap.String("menu_item_id", menuItemID.String()),
				zap.Strings("path", uuidStrings(cycle)),
			)
			return &apperr.RecipeCycleError{Path: cycle}
		}

		child, err := r.store.Recipes().FindByID(ctx, edge.SubRecipeID)
		if err != nil {
			return fmt.Errorf("load sub-recipe %s: %w", edge.SubRecipeID, err)
		}
		if err := r.expand(ctx, child, menuItemID, multiplier.Mul(edge.Quantity), path.with(child.ID), resolved); err != nil {
			return err
		}
	}

	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

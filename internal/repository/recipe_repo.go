package repository

import (
	"context"

	"go-resto-inventory/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RecipeRepository interface {
	// FindActiveByMenuItemIDs bulk-fetches active recipes for a set of menu
	// items in one query, with ingredients and sub-recipe edges eagerly
	// loaded. Menu items without a recipe are simply absent from the result.
	FindActiveByMenuItemIDs(ctx context.Context, menuItemIDs []uuid.UUID) ([]model.Recipe, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
	// FindActiveSubRecipeEdges returns the active outgoing sub-recipe edges
	// of one recipe (no preloads; used by the circular validator walk).
	FindActiveSubRecipeEdges(ctx context.Context, recipeID uuid.UUID) ([]model.RecipeSubRecipe, error)
	// ReplaceSubRecipes swaps the full sub-recipe edge list of a parent.
	// Old edges are soft-deleted so resolution history stays reconstructable.
	ReplaceSubRecipes(ctx context.Context, parentRecipeID uuid.UUID, edges []model.RecipeSubRecipe) error
	AddSubRecipe(ctx context.Context, edge *model.RecipeSubRecipe) error
	UpdateTotalCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal, updatedBy string) error
}

type recipeRepo struct {
	db *gorm.DB
}

func NewRecipeRepo(db *gorm.DB) RecipeRepository {
	return &recipeRepo{db}
}

func (r *recipeRepo) FindActiveByMenuItemIDs(ctx context.Context, menuItemIDs []uuid.UUID) ([]model.Recipe, error) {
	var recipes []model.Recipe
	err := r.db.WithContext(ctx).
		Preload("Ingredients").
		Preload("SubRecipes").
		Where("menu_item_id IN ? AND status = ?", menuItemIDs, model.RecipeStatusActive).
		Find(&recipes).Error
	return recipes, err
}

func (r *recipeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.db.WithContext(ctx).
		Preload("Ingredients").
		Preload("SubRecipes").
		First(&recipe, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepo) FindActiveSubRecipeEdges(ctx context.Context, recipeID uuid.UUID) ([]model.RecipeSubRecipe, error) {
	var edges []model.RecipeSubRecipe
	err := r.db.WithContext(ctx).
		Where("parent_recipe_id = ? AND is_active = ?", recipeID, true).
		Find(&edges).Error
	return edges, err
}

func (r *recipeRepo) ReplaceSubRecipes(ctx context.Context, parentRecipeID uuid.UUID, edges []model.RecipeSubRecipe) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("parent_recipe_id = ?", parentRecipeID).
		Delete(&model.RecipeSubRecipe{}).Error; err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	return tx.Create(&edges).Error
}

func (r *recipeRepo) AddSubRecipe(ctx context.Context, edge *model.RecipeSubRecipe) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *recipeRepo) UpdateTotalCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal, updatedBy string) error {
	return r.db.WithContext(ctx).Model(&model.Recipe{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_cost": cost,
			"updated_by": updatedBy,
		}).Error
}

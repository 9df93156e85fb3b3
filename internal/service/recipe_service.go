package service

import (
	"context"
	"fmt"

	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubRecipeInput is one edge of a "set all sub-recipes" request.
type SubRecipeInput struct {
	SubRecipeID uuid.UUID       `json:"sub_recipe_id" validate:"uuid_required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// RecipeService owns recipe-authoring mutations. Every sub-recipe change
// passes through the CircularValidator before anything is persisted, and
// the derived total cost is recomputed afterwards.
type RecipeService interface {
	GetRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
	SetSubRecipes(ctx context.Context, parentRecipeID uuid.UUID, inputs []SubRecipeInput, userID string) (*model.Recipe, error)
	AddSubRecipe(ctx context.Context, parentRecipeID uuid.UUID, input SubRecipeInput, userID string) (*model.Recipe, error)
}

type recipeService struct {
	store     repository.Store
	validator CircularValidator
	logger    *zap.Logger
}

func NewRecipeService(store repository.Store, validator CircularValidator, logger *zap.Logger) RecipeService {
	return &recipeService{store: store, validator: validator, logger: logger}
}

func (s *recipeService) GetRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	return s.store.Recipes().FindByID(ctx, id)
}

func (s *recipeService) SetSubRecipes(ctx context.Context, parentRecipeID uuid.UUID, inputs []SubRecipeInput, userID string) (*model.Recipe, error) {
	ids := make([]uuid.UUID, len(inputs))
	for i, input := range inputs {
		ids[i] = input.SubRecipeID
	}
	if err := s.validator.ValidateSubRecipeSet(ctx, parentRecipeID, ids); err != nil {
		return nil, err
	}

	err := s.store.Transact(ctx, func(store repository.Store) error {
		edges := make([]model.RecipeSubRecipe, len(inputs))
		for i, input := range inputs {
			edges[i] = model.RecipeSubRecipe{
				ParentRecipeID: parentRecipeID,
				SubRecipeID:    input.SubRecipeID,
				Quantity:       input.Quantity,
				IsActive:       true,
			}
			edges[i].CreatedBy = userID
			edges[i].UpdatedBy = userID
		}
		if err := store.Recipes().ReplaceSubRecipes(ctx, parentRecipeID, edges); err != nil {
			return fmt.Errorf("replace sub-recipes: %w", err)
		}
		return s.recomputeTotalCost(ctx, store, parentRecipeID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recipe sub-recipes replaced",
		zap.String("recipe_id", parentRecipeID.String()),
		zap.Int("edges", len(inputs)),
	)
	return s.store.Recipes().FindByID(ctx, parentRecipeID)
}

func (s *recipeService) AddSubRecipe(ctx context.Context, parentRecipeID uuid.UUID, input SubRecipeInput, userID string) (*model.Recipe, error) {
	if err := s.validator.ValidateNoCircularReference(ctx, parentRecipeID, input.SubRecipeID); err != nil {
		return nil, err
	}

	err := s.store.Transact(ctx, func(store repository.Store) error {
		edge := &model.RecipeSubRecipe{
			ParentRecipeID: parentRecipeID,
			SubRecipeID:    input.SubRecipeID,
			Quantity:       input.Quantity,
			IsActive:       true,
		}
		edge.CreatedBy = userID
		edge.UpdatedBy = userID
		if err := store.Recipes().AddSubRecipe(ctx, edge); err != nil {
			return fmt.Errorf("add sub-recipe edge: %w", err)
		}
		return s.recomputeTotalCost(ctx, store, parentRecipeID, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Recipes().FindByID(ctx, parentRecipeID)
}

// recomputeTotalCost derives the recipe cost from its active ingredients
// plus the already-derived cost of each active sub-recipe. The validator
// keeps the graph acyclic, so one level of child costs is enough here.
func (s *recipeService) recomputeTotalCost(ctx context.Context, store repository.Store, recipeID uuid.UUID, userID string) error {
	recipe, err := store.Recipes().FindByID(ctx, recipeID)
	if err != nil {
		return fmt.Errorf("reload recipe: %w", err)
	}
	total := decimal.Zero
	for _, ing := range recipe.Ingredients {
		if !ing.IsActive || ing.IsOptional {
			continue
		}
		total = total.Add(ing.Quantity.Mul(ing.UnitCost))
	}
	for _, edge := range recipe.SubRecipes {
		if !edge.IsActive {
			continue
		}
		child, err := store.Recipes().FindByID(ctx, edge.SubRecipeID)
		if err != nil {
			return fmt.Errorf("load sub-recipe %s: %w", edge.SubRecipeID, err)
		}
		total = total.Add(edge.Quantity.Mul(child.TotalCost))
	}
	return store.Recipes().UpdateTotalCost(ctx, recipeID, total, userID)
}

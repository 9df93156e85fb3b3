package service

import (
	"context"
	"fmt"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CircularValidator gates recipe-authoring mutations: it answers "would
// adding sub-recipe S under parent P close a cycle reachable from P"
// before the edge is persisted. The resolver performs its own inline
// check as a second line of defense against cycles that slipped into the
// data some other way.
type CircularValidator interface {
	ValidateNoCircularReference(ctx context.Context, parentRecipeID, candidateSubRecipeID uuid.UUID) error
	// ValidateSubRecipeSet validates a bulk "set all sub-recipes" request:
	// duplicate candidate ids are rejected, then each candidate is checked.
	ValidateSubRecipeSet(ctx context.Context, parentRecipeID uuid.UUID, subRecipeIDs []uuid.UUID) error
}

type circularValidator struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCircularValidator(store repository.Store, logger *zap.Logger) CircularValidator {
	return &circularValidator{store: store, logger: logger}
}

func (v *circularValidator) ValidateNoCircularReference(ctx context.Context, parentRecipeID, candidateSubRecipeID uuid.UUID) error {
	if parentRecipeID == candidateSubRecipeID {
		return &apperr.RecipeCycleError{
			Path:          []uuid.UUID{parentRecipeID, candidateSubRecipeID},
			SelfReference: true,
		}
	}

	// Simulate the insertion: if the parent is reachable from the candidate
	// through existing active edges, candidate -> ... -> parent plus the new
	// parent -> candidate edge closes a cycle.
	visited := map[uuid.UUID]bool{candidateSubRecipeID: true}
	path := []uuid.UUID{parentRecipeID, candidateSubRecipeID}
	if err := v.walk(ctx, parentRecipeID, candidateSubRecipeID, path, visited); err != nil {
		return err
	}
	return nil
}

func (v *circularValidator) walk(ctx context.Context, target, current uuid.UUID, path []uuid.UUID, visited map[uuid.UUID]bool) error {
	edges, err := v.store.Recipes().FindActiveSubRecipeEdges(ctx, current)
	if err != nil {
		return fmt.Errorf("load sub-recipe edges of %s: %w", current, err)
	}
	for _, edge := range edges {
		if edge.SubRecipeID == target {
			cycle := append(append([]uuid.UUID{}, path...), target)
			v.logger.Warn("rejected sub-recipe edge that would close a cycle",
				zap.String("parent_recipe_id", target.String()),
				zap.Strings("path", uuidStrings(cycle)),
			)
			return &apperr.RecipeCycleError{Path: cycle}
		}
		// Pure reachability: a node explored once need not be explored again
		if visited[edge.SubRecipeID] {
			continue
		}
		visited[edge.SubRecipeID] = true
		branch := append(append([]uuid.UUID{}, path...), edge.SubRecipeID)
		if err := v.walk(ctx, target, edge.SubRecipeID, branch, visited); err != nil {
			return err
		}
	}
	return nil
}

func (v *circularValidator) ValidateSubRecipeSet(ctx context.Context, parentRecipeID uuid.UUID, subRecipeIDs []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(subRecipeIDs))
	for _, id := range subRecipeIDs {
		if seen[id] {
			return fmt.Errorf("duplicate sub-recipe %s in request", id)
		}
		seen[id] = true
	}
	for _, id := range subRecipeIDs {
		if err := v.ValidateNoCircularReference(ctx, parentRecipeID, id); err != nil {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"
	"go-resto-inventory/pkg/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DeductionType tags the audit trail with why stock was consumed.
type DeductionType string

const (
	DeductionOrderCompleted     DeductionType = "order_completed"
	DeductionPartialFulfillment DeductionType = "partial_fulfillment"
)

// DeductionRequest carries one order's deduction call.
type DeductionRequest struct {
	OrderID string
	UserID  string
	Items   []OrderItem
	Type    DeductionType
	// OrderTotal drives the high-value critical alert on insufficient stock
	OrderTotal            decimal.Decimal
	AllowPartial          bool
	CreateReviewOnFailure bool
}

// DeductedItem reports one successful per-ingredient deduction.
type DeductedItem struct {
	InventoryItemID  uuid.UUID       `json:"inventory_item_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	QuantityBefore   decimal.Decimal `json:"quantity_before"`
	QuantityDeducted decimal.Decimal `json:"quantity_deducted"`
	QuantityAfter    decimal.Decimal `json:"quantity_after"`
	AdjustmentID     uuid.UUID       `json:"adjustment_id"`
}

// DeductionResult is returned by a successful (possibly partial) deduction.
type DeductionResult struct {
	OrderID             string            `json:"order_id"`
	Deducted            []DeductedItem    `json:"deducted"`
	LowStockAlerts      []LowStockAlert   `json:"low_stock_alerts"`
	SkippedNoRecipe     []uuid.UUID       `json:"skipped_no_recipe,omitempty"`
	SkippedInsufficient []apperr.ShortItem `json:"skipped_insufficient,omitempty"`
	SkippedNotFound     []uuid.UUID       `json:"skipped_not_found,omitempty"`
}

// ReversedItem reports one compensating return adjustment.
type ReversedItem struct {
	InventoryItemID      uuid.UUID       `json:"inventory_item_id"`
	AdjustmentID         uuid.UUID       `json:"adjustment_id"`
	ReturnAdjustmentID   uuid.UUID       `json:"return_adjustment_id"`
	QuantityReturned     decimal.Decimal `json:"quantity_returned"`
	QuantityAfterReversal decimal.Decimal `json:"quantity_after_reversal"`
}

// ReversalResult is returned by ReverseDeduction. Reversed is empty when
// the order had nothing to reverse; that is success, not an error.
type ReversalResult struct {
	OrderID  string         `json:"order_id"`
	Reversed []ReversedItem `json:"reversed"`
}

// IngredientImpact is one row of a read-only deduction preview.
type IngredientImpact struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	Required        decimal.Decimal `json:"required"`
	Available       decimal.Decimal `json:"available"`
	Remaining       decimal.Decimal `json:"remaining"`
	Sufficient      bool            `json:"sufficient"`
}

// ImpactPreview mirrors the resolve + availability steps of a deduction
// without writing anything.
type ImpactPreview struct {
	Impacts            []IngredientImpact `json:"impacts"`
	Warnings           []string           `json:"warnings,omitempty"`
	ItemsWithoutRecipe []uuid.UUID        `json:"items_without_recipe,omitempty"`
	CanFulfill         bool               `json:"can_fulfill"`
}

// DeductionConfig holds the tunables the surrounding application supplies.
type DeductionConfig struct {
	// HighValueOrderThreshold: orders at or above it trigger a critical
	// alert when they fail on insufficient stock. Zero disables the alert.
	HighValueOrderThreshold decimal.Decimal
	Retry                   retry.Config
}

// DeductionService owns the only write path to inventory quantities and
// the adjustment ledger.
type DeductionService interface {
	DeductForOrder(ctx context.Context, req DeductionRequest) (*DeductionResult, error)
	DeductForPartialFulfillment(ctx context.Context, orderID, userID string, fulfilled []OrderItem) (*DeductionResult, error)
	ReverseDeduction(ctx context.Context, orderID, userID, reason string, force bool) (*ReversalResult, error)
	PreviewImpact(ctx context.Context, items []OrderItem) (*ImpactPreview, error)
}

type deductionService struct {
	store    repository.Store
	resolver RecipeResolver
	reviews  ReviewService
	notifier Notifier
	cfg      DeductionConfig
	logger   *zap.Logger
}

func NewDeductionService(store repository.Store, resolver RecipeResolver, reviews ReviewService, notifier Notifier, cfg DeductionConfig, logger *zap.Logger) DeductionService {
	return &deductionService{
		store:    store,
		resolver: resolver,
		reviews:  reviews,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *deductionService) DeductForOrder(ctx context.Context, req DeductionRequest) (*DeductionResult, error) {
	if req.Type == "" {
		req.Type = DeductionOrderCompleted
	}

	var result *DeductionResult
	op := func(ctx context.Context) error {
		res, err := s.deductOnce(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	}
	if err := retry.Do(ctx, s.cfg.Retry, s.logger, "inventory deduction", op); err != nil {
		s.handleDeductionFailure(ctx, req, err)
		return nil, err
	}

	// Side effects only after the transaction committed
	for _, alert := range result.LowStockAlerts {
		s.notifier.NotifyLowStock(ctx, alert, req.OrderID)
	}
	s.logger.Info("inventory deducted for order",
		zap.String("order_id", req.OrderID),
		zap.String("deduction_type", string(req.Type)),
		zap.Int("items_deducted", len(result.Deducted)),
		zap.Int("low_stock_alerts", len(result.LowStockAlerts)),
	)
	return result, nil
}

// deductOnce runs the full deduction state machine inside one transaction.
// Any error rolls back every write of this attempt.
func (s *deductionService) deductOnce(ctx context.Context, req DeductionRequest) (*DeductionResult, error) {
	result := &DeductionResult{OrderID: req.OrderID}

	err := s.store.Transact(ctx, func(store repository.Store) error {
		// 1. Concurrency guard: serialize on the order id, then check for
		// adjustments a previous attempt already wrote.
		if err := store.AcquireOrderLock(ctx, req.OrderID); err != nil {
			return fmt.Errorf("acquire order lock: %w", err)
		}
		existing, err := store.Inventory().FindAdjustmentsByReference(ctx, model.ReferenceOrder, req.OrderID, model.AdjustmentConsumption)
		if err != nil {
			return fmt.Errorf("check existing adjustments: %w", err)
		}
		if len(existing) > 0 {
			ids := make([]uuid.UUID, len(existing))
			for i, adj := range existing {
				ids[i] = adj.ID
			}
			return &apperr.DuplicateDeductionError{OrderID: req.OrderID, ExistingAdjustmentIDs: ids}
		}

		// 2. Resolve the recipe graph
		resolved, err := s.resolver.ResolveRequiredIngredients(ctx, req.Items)
		if err != nil {
			var cycleErr *apperr.RecipeCycleError
			if errors.As(err, &cycleErr) {
				cycleErr.OrderID = req.OrderID
			}
			return err
		}
		result.SkippedNoRecipe = resolved.ItemsWithoutRecipe
		if len(resolved.ItemsWithoutRecipe) > 0 && !req.AllowPartial {
			return &apperr.MissingRecipeError{OrderID: req.OrderID, MenuItemIDs: resolved.ItemsWithoutRecipe}
		}

		// 3. Availability check
		ids := sortedRequirementIDs(resolved.Requirements)
		items, err := store.Inventory().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("fetch inventory items: %w", err)
		}
		itemByID := make(map[uuid.UUID]*model.InventoryItem, len(items))
		for i := range items {
			itemByID[items[i].ID] = &items[i]
		}

		skip := make(map[uuid.UUID]bool)
		var notFound []uuid.UUID
		var short []apperr.ShortItem
		for _, id := range ids {
			requirement := resolved.Requirements[id]
			item, ok := itemByID[id]
			if !ok {
				notFound = append(notFound, id)
				skip[id] = true
				continue
			}
			if item.Quantity.LessThan(requirement.Quantity) {
				short = append(short, shortItem(item, requirement))
				skip[id] = true
			}
		}
		if len(notFound) > 0 && !req.AllowPartial {
			return &apperr.InventoryNotFoundError{OrderID: req.OrderID, InventoryItemIDs: notFound}
		}
		if len(short) > 0 && !req.AllowPartial {
			return &apperr.InsufficientStockError{OrderID: req.OrderID, Items: short}
		}
		result.SkippedNotFound = notFound
		result.SkippedInsufficient = short

		// 4. Deduct. Rows are locked in sorted-id order so concurrent
		// orders over overlapping ingredients cannot deadlock by ordering;
		// residual deadlocks surface as retryable errors.
		for _, id := range ids {
			if skip[id] {
				continue
			}
			requirement := resolved.Requirements[id]
			item, err := store.Inventory().FindByIDForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("lock inventory item %s: %w", id, err)
			}
			if item.Quantity.LessThan(requirement.Quantity) {
				// Stock moved between the unlocked check and the lock
				if req.AllowPartial {
					result.SkippedInsufficient = append(result.SkippedInsufficient, shortItem(item, requirement))
					continue
				}
				return &apperr.InsufficientStockError{OrderID: req.OrderID, Items: []apperr.ShortItem{shortItem(item, requirement)}}
			}

			newQuantity := item.Quantity.Sub(requirement.Quantity)
			adj := &model.InventoryAdjustment{
				InventoryItemID: id,
				Type:            model.AdjustmentConsumption,
				QuantityBefore:  item.Quantity,
				QuantityChange:  requirement.Quantity.Neg(),
				QuantityAfter:   newQuantity,
				ReferenceType:   model.ReferenceOrder,
				ReferenceID:     req.OrderID,
				PerformedBy:     req.UserID,
				Metadata: model.AdjustmentMetadata{
					Sources:       adjustmentSources(requirement),
					DeductionType: string(req.Type),
				},
			}
			adj.CreatedBy = req.UserID
			adj.UpdatedBy = req.UserID
			if err := store.Inventory().CreateAdjustment(ctx, adj); err != nil {
				return fmt.Errorf("write adjustment for %s: %w", id, err)
			}
			if err := store.Inventory().UpdateQuantity(ctx, id, newQuantity, req.UserID); err != nil {
				return fmt.Errorf("update quantity of %s: %w", id, err)
			}

			result.Deducted = append(result.Deducted, DeductedItem{
				InventoryItemID:  id,
				Name:             item.Name,
				Unit:             item.Unit,
				QuantityBefore:   item.Quantity,
				QuantityDeducted: requirement.Quantity,
				QuantityAfter:    newQuantity,
				AdjustmentID:     adj.ID,
			})

			// Alert once per crossing: only when this deduction moved the
			// quantity from above the threshold to at-or-below it
			if item.LowStockThreshold != nil &&
				newQuantity.LessThanOrEqual(*item.LowStockThreshold) &&
				item.Quantity.GreaterThan(*item.LowStockThreshold) {
				result.LowStockAlerts = append(result.LowStockAlerts, LowStockAlert{
					InventoryItemID: id.String(),
					Name:            item.Name,
					Remaining:       newQuantity,
					Threshold:       *item.LowStockThreshold,
					Unit:            item.Unit,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *deductionService) DeductForPartialFulfillment(ctx context.Context, orderID, userID string, fulfilled []OrderItem) (*DeductionResult, error) {
	return s.DeductForOrder(ctx, DeductionRequest{
		OrderID:               orderID,
		UserID:                userID,
		Items:                 fulfilled,
		Type:                  DeductionPartialFulfillment,
		AllowPartial:          true,
		CreateReviewOnFailure: true,
	})
}

func (s *deductionService) ReverseDeduction(ctx context.Context, orderID, userID, reason string, force bool) (*ReversalResult, error) {
	var result *ReversalResult
	op := func(ctx context.Context) error {
		res := &ReversalResult{OrderID: orderID}
		err := s.store.Transact(ctx, func(store repository.Store) error {
			if err := store.AcquireOrderLock(ctx, orderID); err != nil {
				return fmt.Errorf("acquire order lock: %w", err)
			}
			adjustments, err := store.Inventory().FindAdjustmentsByReference(ctx, model.ReferenceOrder, orderID, model.AdjustmentConsumption)
			if err != nil {
				return fmt.Errorf("load consumption adjustments: %w", err)
			}

			pending := make([]model.InventoryAdjustment, 0, len(adjustments))
			var synced []uuid.UUID
			for _, adj := range adjustments {
				if adj.ReversedByID != nil {
					continue
				}
				if adj.IsSyncLocked() {
					synced = append(synced, adj.ID)
				}
				pending = append(pending, adj)
			}
			if len(synced) > 0 && !force {
				return &apperr.SyncLockedError{OrderID: orderID, AdjustmentIDs: synced}
			}
			// Nothing to reverse is a no-op success
			if len(pending) == 0 {
				return nil
			}

			// Same deterministic lock order as deduction
			sort.Slice(pending, func(i, j int) bool {
				return pending[i].InventoryItemID.String() < pending[j].InventoryItemID.String()
			})

			for _, adj := range pending {
				item, err := store.Inventory().FindByIDForUpdate(ctx, adj.InventoryItemID)
				if err != nil {
					return fmt.Errorf("lock inventory item %s: %w", adj.InventoryItemID, err)
				}
				returned := adj.QuantityChange.Neg() // consumption change is negative
				restored := item.Quantity.Add(returned)
				originalID := adj.ID
				ret := &model.InventoryAdjustment{
					InventoryItemID: adj.InventoryItemID,
					Type:            model.AdjustmentReturn,
					QuantityBefore:  item.Quantity,
					QuantityChange:  returned,
					QuantityAfter:   restored,
					ReferenceType:   model.ReferenceOrder,
					ReferenceID:     orderID,
					PerformedBy:     userID,
					Metadata: model.AdjustmentMetadata{
						ReversedAdjustmentID: &originalID,
						Reason:               reason,
					},
				}
				ret.CreatedBy = userID
				ret.UpdatedBy = userID
				if err := store.Inventory().CreateAdjustment(ctx, ret); err != nil {
					return fmt.Errorf("write return adjustment for %s: %w", adj.InventoryItemID, err)
				}
				if err := store.Inventory().UpdateQuantity(ctx, adj.InventoryItemID, restored, userID); err != nil {
					return fmt.Errorf("restore quantity of %s: %w", adj.InventoryItemID, err)
				}
				if err := store.Inventory().MarkReversed(ctx, adj.ID, ret.ID); err != nil {
					return fmt.Errorf("mark adjustment %s reversed: %w", adj.ID, err)
				}
				res.Reversed = append(res.Reversed, ReversedItem{
					InventoryItemID:       adj.InventoryItemID,
					AdjustmentID:          adj.ID,
					ReturnAdjustmentID:    ret.ID,
					QuantityReturned:      returned,
					QuantityAfterReversal: restored,
				})
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	if err := retry.Do(ctx, s.cfg.Retry, s.logger, "inventory reversal", op); err != nil {
		s.handleReversalFailure(ctx, orderID, userID, err)
		return nil, err
	}

	s.logger.Info("inventory deduction reversed",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.Bool("force", force),
		zap.Int("items_reversed", len(result.Reversed)),
	)
	return result, nil
}

func (s *deductionService) PreviewImpact(ctx context.Context, items []OrderItem) (*ImpactPreview, error) {
	resolved, err := s.resolver.ResolveRequiredIngredients(ctx, items)
	if err != nil {
		return nil, err
	}

	preview := &ImpactPreview{
		ItemsWithoutRecipe: resolved.ItemsWithoutRecipe,
		CanFulfill:         len(resolved.ItemsWithoutRecipe) == 0,
	}
	for _, id := range resolved.ItemsWithoutRecipe {
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("menu item %s has no recipe", id))
	}

	ids := sortedRequirementIDs(resolved.Requirements)
	inventory, err := s.store.Inventory().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory items: %w", err)
	}
	itemByID := make(map[uuid.UUID]*model.InventoryItem, len(inventory))
	for i := range inventory {
		itemByID[inventory[i].ID] = &inventory[i]
	}

	for _, id := range ids {
		requirement := resolved.Requirements[id]
		item, ok := itemByID[id]
		if !ok {
			preview.CanFulfill = false
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("inventory item %s not found", id))
			continue
		}
		remaining := item.Quantity.Sub(requirement.Quantity)
		sufficient := !item.Quantity.LessThan(requirement.Quantity)
		if !sufficient {
			preview.CanFulfill = false
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("insufficient stock for '%s': need %s %s, have %s", item.Name, requirement.Quantity.String(), item.Unit, item.Quantity.String()))
		}
		preview.Impacts = append(preview.Impacts, IngredientImpact{
			InventoryItemID: id,
			Name:            item.Name,
			Unit:            item.Unit,
			Required:        requirement.Quantity,
			Available:       item.Quantity,
			Remaining:       remaining,
			Sufficient:      sufficient,
		})
	}
	return preview, nil
}

// handleDeductionFailure logs, records the attempt, and files manual
// review per the reason-specific priority table. Duplicate deduction is a
// benign no-op guard: warning log only, never escalated.
func (s *deductionService) handleDeductionFailure(ctx context.Context, req DeductionRequest, err error) {
	var dup *apperr.DuplicateDeductionError
	if errors.As(err, &dup) {
		s.logger.Warn("skipping duplicate inventory deduction",
			zap.String("order_id", req.OrderID),
			zap.Int("existing_adjustments", len(dup.ExistingAdjustmentIDs)),
		)
		return
	}

	s.logger.Error("inventory deduction failed",
		zap.String("order_id", req.OrderID),
		zap.String("deduction_type", string(req.Type)),
		zap.Error(err),
	)

	details := failureDetails(req.OrderID, req.Items, err)
	attempt := &model.DeductionAttempt{
		OrderID:      req.OrderID,
		ErrorCode:    errorCode(err),
		ErrorMessage: err.Error(),
		Details:      model.JSONMap(details),
	}
	attempt.CreatedBy = req.UserID
	attempt.UpdatedBy = req.UserID
	if recErr := s.store.Inventory().CreateAttempt(ctx, attempt); recErr != nil {
		s.logger.Error("failed to record deduction attempt",
			zap.String("order_id", req.OrderID),
			zap.Error(recErr),
		)
	}

	// High-value orders failing on stock wake someone up immediately
	var insufficient *apperr.InsufficientStockError
	if errors.As(err, &insufficient) &&
		s.cfg.HighValueOrderThreshold.IsPositive() &&
		req.OrderTotal.GreaterThanOrEqual(s.cfg.HighValueOrderThreshold) {
		s.notifier.SendCriticalAlert(ctx, "high_value_order_blocked",
			fmt.Sprintf("high-value order %s blocked by insufficient stock", req.OrderID),
			map[string]interface{}{"order_id": req.OrderID, "short_items": insufficient.Items},
		)
	}

	if !req.CreateReviewOnFailure {
		return
	}
	reason, priority := reviewClassification(err)
	if _, revErr := s.reviews.CreateOrEscalate(ctx, model.ReferenceOrder, req.OrderID, reason, priority, details); revErr != nil {
		s.logger.Error("failed to file manual review entry",
			zap.String("order_id", req.OrderID),
			zap.Error(revErr),
		)
	}
}

func (s *deductionService) handleReversalFailure(ctx context.Context, orderID, userID string, err error) {
	s.logger.Error("inventory reversal failed",
		zap.String("order_id", orderID),
		zap.Error(err),
	)
	details := failureDetails(orderID, nil, err)
	attempt := &model.DeductionAttempt{
		OrderID:      orderID,
		ErrorCode:    errorCode(err),
		ErrorMessage: err.Error(),
		Details:      model.JSONMap(details),
	}
	attempt.CreatedBy = userID
	attempt.UpdatedBy = userID
	if recErr := s.store.Inventory().CreateAttempt(ctx, attempt); recErr != nil {
		s.logger.Error("failed to record reversal attempt",
			zap.String("order_id", orderID),
			zap.Error(recErr),
		)
	}
	reason, priority := reviewClassification(err)
	if _, revErr := s.reviews.CreateOrEscalate(ctx, model.ReferenceOrder, orderID, reason, priority, details); revErr != nil {
		s.logger.Error("failed to file manual review entry",
			zap.String("order_id", orderID),
			zap.Error(revErr),
		)
	}
}

// reviewClassification maps a failure to its manual-review reason and
// priority. Data problems outrank stock problems: a missing inventory row
// or an externally synced ledger means something upstream is wrong.
func reviewClassification(err error) (model.ReviewReason, int) {
	var (
		missing  *apperr.MissingRecipeError
		short    *apperr.InsufficientStockError
		notFound *apperr.InventoryNotFoundError
		cycle    *apperr.RecipeCycleError
		synced   *apperr.SyncLockedError
	)
	switch {
	case errors.As(err, &missing):
		return model.ReviewReasonMissingRecipe, 5
	case errors.As(err, &short):
		return model.ReviewReasonInsufficientStock, 6
	case errors.As(err, &cycle):
		return model.ReviewReasonRecipeCircular, 7
	case errors.As(err, &notFound):
		return model.ReviewReasonInventoryNotFound, 8
	case errors.As(err, &synced):
		return model.ReviewReasonSyncConflict, 9
	default:
		return model.ReviewReasonOther, 4
	}
}

func errorCode(err error) string {
	if de, ok := apperr.AsDomain(err); ok {
		return de.Code()
	}
	return "internal_error"
}

func failureDetails(orderID string, items []OrderItem, err error) apperr.Details {
	details := apperr.Details{"order_id": orderID}
	if de, ok := apperr.AsDomain(err); ok {
		for k, v := range de.Details() {
			details[k] = v
		}
	}
	if len(items) > 0 {
		attempted := make([]map[string]interface{}, len(items))
		for i, item := range items {
			attempted[i] = map[string]interface{}{
				"menu_item_id": item.MenuItemID.String(),
				"quantity":     item.Quantity.String(),
			}
		}
		details["attempted_items"] = attempted
	}
	return details
}

func sortedRequirementIDs(requirements map[uuid.UUID]*IngredientRequirement) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(requirements))
	for id := range requirements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

func shortItem(item *model.InventoryItem, requirement *IngredientRequirement) apperr.ShortItem {
	menuItems := make([]uuid.UUID, 0, len(requirement.Sources))
	seen := make(map[uuid.UUID]bool, len(requirement.Sources))
	for _, src := range requirement.Sources {
		if !seen[src.MenuItemID] {
			seen[src.MenuItemID] = true
			menuItems = append(menuItems, src.MenuItemID)
		}
	}
	return apperr.ShortItem{
		InventoryItemID: item.ID,
		Name:            item.Name,
		Available:       item.Quantity,
		Required:        requirement.Quantity,
		Unit:            item.Unit,
		Shortage:        requirement.Quantity.Sub(item.Quantity),
		MenuItemIDs:     menuItems,
	}
}

func adjustmentSources(requirement *IngredientRequirement) []model.AdjustmentSource {
	sources := make([]model.AdjustmentSource, len(requirement.Sources))
	for i, src := range requirement.Sources {
		sources[i] = model.AdjustmentSource{
			RecipeID:   src.RecipeID,
			MenuItemID: src.MenuItemID,
			Quantity:   src.Quantity,
		}
	}
	return sources
}

// Package apperr holds the typed failure taxonomy of the inventory
// deduction subsystem. Every kind carries a stable machine code, a human
// message, and a structured detail payload that the manual review queue
// and the deduction audit trail persist verbatim. Callers match kinds
// with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Details is the structured payload attached to a domain failure.
type Details map[string]interface{}

// DomainError is implemented by every failure kind in this package.
type DomainError interface {
	error
	Code() string
	Details() Details
}

// AsDomain unwraps err into its DomainError if it carries one.
func AsDomain(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ShortItem describes one ingredient that cannot be covered by current
// on-hand stock.
type ShortItem struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Available       decimal.Decimal `json:"available"`
	Required        decimal.Decimal `json:"required"`
	Unit            string          `json:"unit"`
	Shortage        decimal.Decimal `json:"shortage"`
	MenuItemIDs     []uuid.UUID     `json:"menu_item_ids,omitempty"`
}

// InsufficientStockError reports ingredients whose on-hand quantity is
// below the resolved requirement for the order.
type InsufficientStockError struct {
	OrderID string
	Items   []ShortItem
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, len(e.Items))
	for i, item := range e.Items {
		names[i] = fmt.Sprintf("%s (short %s %s)", item.Name, item.Shortage.String(), item.Unit)
	}
	return fmt.Sprintf("insufficient stock for order %s: %s", e.OrderID, strings.Join(names, ", "))
}

func (e *InsufficientStockError) Code() string { return "insufficient_stock" }

func (e *InsufficientStockError) Details() Details {
	return Details{"order_id": e.OrderID, "short_items": e.Items}
}

// MissingRecipeError reports menu items that have no recipe attached.
// Always routed to manual review.
type MissingRecipeError struct {
	OrderID     string
	MenuItemIDs []uuid.UUID
}

func (e *MissingRecipeError) Error() string {
	return fmt.Sprintf("order %s contains %d menu item(s) without a recipe", e.OrderID, len(e.MenuItemIDs))
}

func (e *MissingRecipeError) Code() string { return "missing_recipe" }

func (e *MissingRecipeError) Details() Details {
	return Details{"order_id": e.OrderID, "menu_item_ids": idStrings(e.MenuItemIDs)}
}

// InventoryNotFoundError reports recipe ingredients referencing inventory
// ids that do not exist. Always routed to manual review.
type InventoryNotFoundError struct {
	OrderID          string
	InventoryItemIDs []uuid.UUID
}

func (e *InventoryNotFoundError) Error() string {
	return fmt.Sprintf("order %s references %d unknown inventory item(s)", e.OrderID, len(e.InventoryItemIDs))
}

func (e *InventoryNotFoundError) Code() string { return "inventory_not_found" }

func (e *InventoryNotFoundError) Details() Details {
	return Details{"order_id": e.OrderID, "inventory_item_ids": idStrings(e.InventoryItemIDs)}
}

// RecipeCycleError reports a circular sub-recipe reference. Path is the
// ordered walk of recipe ids ending back at the repeated id.
type RecipeCycleError struct {
	OrderID       string
	Path          []uuid.UUID
	SelfReference bool
}

func (e *RecipeCycleError) Error() string {
	if e.SelfReference {
		return fmt.Sprintf("recipe %s cannot reference itself as a sub-recipe", e.Path[0])
	}
	return fmt.Sprintf("circular sub-recipe reference: %s", strings.Join(idStrings(e.Path), " -> "))
}

func (e *RecipeCycleError) Code() string { return "recipe_circular_dependency" }

func (e *RecipeCycleError) Details() Details {
	return Details{"order_id": e.OrderID, "cycle_path": idStrings(e.Path), "self_reference": e.SelfReference}
}

// SyncLockedError refuses a reversal because adjustments were already
// propagated to an external system. Bypassed only by an explicit force
// override.
type SyncLockedError struct {
	OrderID       string
	AdjustmentIDs []uuid.UUID
}

func (e *SyncLockedError) Error() string {
	return fmt.Sprintf("order %s has %d adjustment(s) already synced externally; reversal requires force", e.OrderID, len(e.AdjustmentIDs))
}

func (e *SyncLockedError) Code() string { return "inventory_sync_locked" }

func (e *SyncLockedError) Details() Details {
	return Details{"order_id": e.OrderID, "synced_adjustment_ids": idStrings(e.AdjustmentIDs)}
}

// DuplicateDeductionError trips the at-most-once guard: consumption
// adjustments for the order already exist. Treated as a benign skip, never
// escalated to review.
type DuplicateDeductionError struct {
	OrderID               string
	ExistingAdjustmentIDs []uuid.UUID
}

func (e *DuplicateDeductionError) Error() string {
	return fmt.Sprintf("order %s was already deducted (%d existing adjustment(s))", e.OrderID, len(e.ExistingAdjustmentIDs))
}

func (e *DuplicateDeductionError) Code() string { return "concurrent_deduction" }

func (e *DuplicateDeductionError) Details() Details {
	return Details{"order_id": e.OrderID, "existing_adjustment_ids": idStrings(e.ExistingAdjustmentIDs)}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

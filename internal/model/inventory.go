package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustmentConsumption AdjustmentType = "consumption"
	AdjustmentReturn      AdjustmentType = "return"
	AdjustmentOther       AdjustmentType = "other"
)

// ReferenceOrder tags adjustments created on behalf of an order
const ReferenceOrder = "order"

// InventoryItem is a stockable raw good. Quantity is mutated only through
// the deduction service write path, under a row-level lock, with a matching
// InventoryAdjustment row written in the same transaction.
type InventoryItem struct {
	BaseModel
	SKU      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	Unit     string          `gorm:"type:varchar(20)" json:"unit"`
	// LowStockThreshold nil means no alerting for this item
	LowStockThreshold *decimal.Decimal `gorm:"type:decimal(20,4)" json:"low_stock_threshold,omitempty"`
}

// AdjustmentSource records which recipe / order item contributed to an
// adjustment, for audit and explanation.
type AdjustmentSource struct {
	RecipeID   uuid.UUID       `json:"recipe_id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// AdjustmentMetadata is the typed provenance payload stored on each
// adjustment. Extra is the escape hatch for fields we do not model yet.
type AdjustmentMetadata struct {
	Sources              []AdjustmentSource `json:"sources,omitempty"`
	DeductionType        string             `json:"deduction_type,omitempty"`
	ReversedAdjustmentID *uuid.UUID         `json:"reversed_adjustment_id,omitempty"`
	Reason               string             `json:"reason,omitempty"`
	Extra                map[string]string  `json:"extra,omitempty"`
}

func (m AdjustmentMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *AdjustmentMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AdjustmentMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// InventoryAdjustment is an append-only ledger entry. Invariant:
// QuantityAfter = QuantityBefore + QuantityChange, and replaying the ledger
// for one item in creation order reproduces its current on-hand quantity.
// Rows are never edited; a reversal writes a new "return" row that points
// back at the original through Metadata.ReversedAdjustmentID.
type InventoryAdjustment struct {
	BaseModel
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"inventory_item_id" validate:"uuid_required"`
	InventoryItem   *InventoryItem  `gorm:"foreignKey:InventoryItemID" json:"inventory_item,omitempty" validate:"-"`
	Type            AdjustmentType  `gorm:"type:varchar(16);not null" json:"type" validate:"required,oneof=consumption return other"`
	QuantityBefore  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_before"`
	QuantityChange  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_change"`
	QuantityAfter   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_after"`

	ReferenceType string `gorm:"type:varchar(32);index:idx_adjustment_ref" json:"reference_type"`
	ReferenceID   string `gorm:"type:varchar(64);index:idx_adjustment_ref" json:"reference_id"`

	PerformedBy string             `gorm:"type:varchar(255)" json:"performed_by"`
	Metadata    AdjustmentMetadata `gorm:"type:jsonb" json:"metadata"`

	// SyncedAt non-nil means the row was propagated to an external system
	// and is locked against silent reversal
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	// ReversedByID points at the compensating return adjustment, if any
	ReversedByID *uuid.UUID `gorm:"type:uuid" json:"reversed_by_id,omitempty"`
}

// IsSyncLocked reports whether the adjustment may no longer be reversed
// without an explicit admin override.
func (a *InventoryAdjustment) IsSyncLocked() bool {
	return a.SyncedAt != nil
}

// DeductionAttempt is the append-only paper trail of failed deduction
// attempts, one row per failure, for manual reviewers.
type DeductionAttempt struct {
	BaseModel
	OrderID      string  `gorm:"type:varchar(64);not null;index" json:"order_id"`
	ErrorCode    string  `gorm:"type:varchar(64);not null" json:"error_code"`
	ErrorMessage string  `gorm:"type:text" json:"error_message"`
	Details      JSONMap `gorm:"type:jsonb" json:"details"`
}

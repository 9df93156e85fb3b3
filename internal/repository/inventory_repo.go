package repository

import (
	"context"

	"go-resto-inventory/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	FindAll(ctx context.Context) ([]model.InventoryItem, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.InventoryItem, error)
	// FindByIDForUpdate fetches the row under a FOR UPDATE lock. Must be
	// called inside a transaction; lock-wait failures surface as retryable
	// storage errors.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, newQuantity decimal.Decimal, updatedBy string) error

	CreateAdjustment(ctx context.Context, adj *model.InventoryAdjustment) error
	FindAdjustmentsByReference(ctx context.Context, refType, refID string, adjType model.AdjustmentType) ([]model.InventoryAdjustment, error)
	FindAdjustmentsByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryAdjustment, error)
	// MarkReversed links a consumption adjustment to the return adjustment
	// that compensated it. The only field ever touched on a written row.
	MarkReversed(ctx context.Context, adjustmentID, returnAdjustmentID uuid.UUID) error

	CreateAttempt(ctx context.Context, attempt *model.DeductionAttempt) error
}

type inventoryRepo struct {
	db *gorm.DB
}

func NewInventoryRepo(db *gorm.DB) InventoryRepository {
	return &inventoryRepo{db}
}

func (r *inventoryRepo) FindAll(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *inventoryRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *inventoryRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, newQuantity decimal.Decimal, updatedBy string) error {
	return r.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":   newQuantity,
			"updated_by": updatedBy,
		}).Error
}

func (r *inventoryRepo) CreateAdjustment(ctx context.Context, adj *model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(adj).Error
}

func (r *inventoryRepo) FindAdjustmentsByReference(ctx context.Context, refType, refID string, adjType model.AdjustmentType) ([]model.InventoryAdjustment, error) {
	var adjustments []model.InventoryAdjustment
	q := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID)
	if adjType != "" {
		q = q.Where("type = ?", adjType)
	}
	err := q.Order("created_at ASC").Find(&adjustments).Error
	return adjustments, err
}

func (r *inventoryRepo) FindAdjustmentsByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryAdjustment, error) {
	var adjustments []model.InventoryAdjustment
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ?", itemID).
		Order("created_at ASC").
		Find(&adjustments).Error
	return adjustments, err
}

func (r *inventoryRepo) MarkReversed(ctx context.Context, adjustmentID, returnAdjustmentID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.InventoryAdjustment{}).
		Where("id = ?", adjustmentID).
		Update("reversed_by_id", returnAdjustmentID).Error
}

func (r *inventoryRepo) CreateAttempt(ctx context.Context, attempt *model.DeductionAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

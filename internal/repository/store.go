package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store aggregates the repositories behind one handle so a service can run
// several of them inside a single database transaction. Transact hands the
// closure a Store bound to the transaction; every repository call made
// through that handle commits or rolls back together.
type Store interface {
	Recipes() RecipeRepository
	Inventory() InventoryRepository
	Reviews() ReviewRepository
	Users() UserRepository

	Transact(ctx context.Context, fn func(Store) error) error

	// AcquireOrderLock serializes concurrent deduction/reversal attempts
	// for one order. Held until the surrounding transaction ends.
	AcquireOrderLock(ctx context.Context, orderID string) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle in the Store aggregate.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Recipes() RecipeRepository      { return &recipeRepo{db: s.db} }
func (s *gormStore) Inventory() InventoryRepository { return &inventoryRepo{db: s.db} }
func (s *gormStore) Reviews() ReviewRepository      { return &reviewRepo{db: s.db} }
func (s *gormStore) Users() UserRepository          { return &userRepo{db: s.db} }

func (s *gormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// AcquireOrderLock takes a transaction-scoped advisory lock keyed on the
// order id. This closes the read-then-write race in the duplicate
// deduction guard: two calls for the same order serialize here, so the
// second one observes the first one's adjustments.
func (s *gormStore) AcquireOrderLock(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", orderID).Error
}

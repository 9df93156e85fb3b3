package service

import (
	"context"
	"fmt"
	"time"

	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeStore is an in-memory repository.Store used by the service tests.
// Transact snapshots the mutable state up front and restores it when the
// closure fails, matching the all-or-nothing semantics of the real store.
type fakeStore struct {
	recipes          map[uuid.UUID]*model.Recipe
	recipeByMenuItem map[uuid.UUID]*model.Recipe

	items       map[uuid.UUID]model.InventoryItem
	adjustments []model.InventoryAdjustment
	attempts    []model.DeductionAttempt
	reviews     []model.ManualReviewEntry
	users       map[uuid.UUID]model.User

	// lockErrs is a queue of errors returned (one per call, nil meaning
	// success) by FindByIDForUpdate, for contention injection. Not rolled
	// back with the data.
	lockErrs []error

	orderLocks []string
	txDepth    int
	seq        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes:          make(map[uuid.UUID]*model.Recipe),
		recipeByMenuItem: make(map[uuid.UUID]*model.Recipe),
		items:            make(map[uuid.UUID]model.InventoryItem),
		users:            make(map[uuid.UUID]model.User),
	}
}

func (s *fakeStore) addRecipe(r *model.Recipe) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.recipes[r.ID] = r
	if r.MenuItemID != uuid.Nil {
		s.recipeByMenuItem[r.MenuItemID] = r
	}
}

func (s *fakeStore) addItem(item model.InventoryItem) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ID] = item
}

type fakeSnapshot struct {
	items       map[uuid.UUID]model.InventoryItem
	adjustments []model.InventoryAdjustment
	attempts    []model.DeductionAttempt
	reviews     []model.ManualReviewEntry
}

func (s *fakeStore) snapshot() fakeSnapshot {
	items := make(map[uuid.UUID]model.InventoryItem, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	return fakeSnapshot{
		items:       items,
		adjustments: append([]model.InventoryAdjustment{}, s.adjustments...),
		attempts:    append([]model.DeductionAttempt{}, s.attempts...),
		reviews:     append([]model.ManualReviewEntry{}, s.reviews...),
	}
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.items = snap.items
	s.adjustments = snap.adjustments
	s.attempts = snap.attempts
	s.reviews = snap.reviews
}

func (s *fakeStore) Transact(ctx context.Context, fn func(repository.Store) error) error {
	if s.txDepth > 0 {
		return fn(s)
	}
	snap := s.snapshot()
	s.txDepth++
	err := fn(s)
	s.txDepth--
	if err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) AcquireOrderLock(ctx context.Context, orderID string) error {
	s.orderLocks = append(s.orderLocks, orderID)
	return nil
}

func (s *fakeStore) Recipes() repository.RecipeRepository      { return fakeRecipeRepo{s} }
func (s *fakeStore) Inventory() repository.InventoryRepository { return fakeInventoryRepo{s} }
func (s *fakeStore) Reviews() repository.ReviewRepository      { return fakeReviewRepo{s} }
func (s *fakeStore) Users() repository.UserRepository          { return fakeUserRepo{s} }

type fakeRecipeRepo struct{ s *fakeStore }

func (r fakeRecipeRepo) FindActiveByMenuItemIDs(ctx context.Context, menuItemIDs []uuid.UUID) ([]model.Recipe, error) {
	var out []model.Recipe
	for _, id := range menuItemIDs {
		if recipe, ok := r.s.recipeByMenuItem[id]; ok && recipe.Status == model.RecipeStatusActive {
			out = append(out, *recipe)
		}
	}
	return out, nil
}

func (r fakeRecipeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	recipe, ok := r.s.recipes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *recipe
	return &copied, nil
}

func (r fakeRecipeRepo) FindActiveSubRecipeEdges(ctx context.Context, recipeID uuid.UUID) ([]model.RecipeSubRecipe, error) {
	recipe, ok := r.s.recipes[recipeID]
	if !ok {
		return nil, nil
	}
	var edges []model.RecipeSubRecipe
	for _, edge := range recipe.SubRecipes {
		if edge.IsActive {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

func (r fakeRecipeRepo) ReplaceSubRecipes(ctx context.Context, parentRecipeID uuid.UUID, edges []model.RecipeSubRecipe) error {
	recipe, ok := r.s.recipes[parentRecipeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	recipe.SubRecipes = edges
	return nil
}

func (r fakeRecipeRepo) AddSubRecipe(ctx context.Context, edge *model.RecipeSubRecipe) error {
	recipe, ok := r.s.recipes[edge.ParentRecipeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	recipe.SubRecipes = append(recipe.SubRecipes, *edge)
	return nil
}

func (r fakeRecipeRepo) UpdateTotalCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal, updatedBy string) error {
	recipe, ok := r.s.recipes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	recipe.TotalCost = cost
	return nil
}

type fakeInventoryRepo struct{ s *fakeStore }

func (r fakeInventoryRepo) FindAll(ctx context.Context) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, item := range r.s.items {
		out = append(out, item)
	}
	return out, nil
}

func (r fakeInventoryRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, id := range ids {
		if item, ok := r.s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r fakeInventoryRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	if len(r.s.lockErrs) > 0 {
		err := r.s.lockErrs[0]
		r.s.lockErrs = r.s.lockErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	item, ok := r.s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r fakeInventoryRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, newQuantity decimal.Decimal, updatedBy string) error {
	item, ok := r.s.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.Quantity = newQuantity
	item.UpdatedBy = updatedBy
	r.s.items[id] = item
	return nil
}

func (r fakeInventoryRepo) CreateAdjustment(ctx context.Context, adj *model.InventoryAdjustment) error {
	if adj.ID == uuid.Nil {
		adj.ID = uuid.New()
	}
	r.s.seq++
	adj.CreatedAt = time.Unix(int64(r.s.seq), 0) // stable creation order
	r.s.adjustments = append(r.s.adjustments, *adj)
	return nil
}

func (r fakeInventoryRepo) FindAdjustmentsByReference(ctx context.Context, refType, refID string, adjType model.AdjustmentType) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	for _, adj := range r.s.adjustments {
		if adj.ReferenceType == refType && adj.ReferenceID == refID && (adjType == "" || adj.Type == adjType) {
			out = append(out, adj)
		}
	}
	return out, nil
}

func (r fakeInventoryRepo) FindAdjustmentsByItem(ctx context.Context, itemID uuid.UUID) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	for _, adj := range r.s.adjustments {
		if adj.InventoryItemID == itemID {
			out = append(out, adj)
		}
	}
	return out, nil
}

func (r fakeInventoryRepo) MarkReversed(ctx context.Context, adjustmentID, returnAdjustmentID uuid.UUID) error {
	for i := range r.s.adjustments {
		if r.s.adjustments[i].ID == adjustmentID {
			id := returnAdjustmentID
			r.s.adjustments[i].ReversedByID = &id
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r fakeInventoryRepo) CreateAttempt(ctx context.Context, attempt *model.DeductionAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	r.s.attempts = append(r.s.attempts, *attempt)
	return nil
}

type fakeReviewRepo struct{ s *fakeStore }

func (r fakeReviewRepo) FindOpenByReference(ctx context.Context, refType, refID string) (*model.ManualReviewEntry, error) {
	for i := range r.s.reviews {
		entry := r.s.reviews[i]
		if entry.ReferenceType == refType && entry.ReferenceID == refID && entry.Status.IsOpen() {
			copied := entry
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeReviewRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ManualReviewEntry, error) {
	for i := range r.s.reviews {
		if r.s.reviews[i].ID == id {
			copied := r.s.reviews[i]
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeReviewRepo) FindPending(ctx context.Context) ([]model.ManualReviewEntry, error) {
	var out []model.ManualReviewEntry
	for _, entry := range r.s.reviews {
		if entry.Status.IsOpen() {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r fakeReviewRepo) Create(ctx context.Context, entry *model.ManualReviewEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.s.reviews = append(r.s.reviews, *entry)
	return nil
}

func (r fakeReviewRepo) Update(ctx context.Context, entry *model.ManualReviewEntry) error {
	for i := range r.s.reviews {
		if r.s.reviews[i].ID == entry.ID {
			r.s.reviews[i] = *entry
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeUserRepo struct{ s *fakeStore }

func (r fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range r.s.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if _, ok := r.s.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.users[user.ID] = *user
	return nil
}

// fakeNotifier captures outbound side effects.
type fakeNotifier struct {
	lowStock  []LowStockAlert
	critical  []string
	roleNotes []string
}

func (n *fakeNotifier) NotifyLowStock(ctx context.Context, alert LowStockAlert, orderID string) {
	n.lowStock = append(n.lowStock, alert)
}

func (n *fakeNotifier) SendCriticalAlert(ctx context.Context, alertType, message string, affected map[string]interface{}) {
	n.critical = append(n.critical, alertType)
}

func (n *fakeNotifier) SendRoleNotification(ctx context.Context, role, subject, message string, priority int) {
	n.roleNotes = append(n.roleNotes, fmt.Sprintf("%s: %s", role, subject))
}

package repository

import (
	"context"

	"go-resto-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	// FindOpenByReference returns the pending/in_review entry for a
	// reference, or gorm.ErrRecordNotFound.
	FindOpenByReference(ctx context.Context, refType, refID string) (*model.ManualReviewEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ManualReviewEntry, error)
	FindPending(ctx context.Context) ([]model.ManualReviewEntry, error)
	Create(ctx context.Context, entry *model.ManualReviewEntry) error
	Update(ctx context.Context, entry *model.ManualReviewEntry) error
}

type reviewRepo struct {
	db *gorm.DB
}

func NewReviewRepo(db *gorm.DB) ReviewRepository {
	return &reviewRepo{db}
}

func (r *reviewRepo) FindOpenByReference(ctx context.Context, refType, refID string) (*model.ManualReviewEntry, error) {
	var entry model.ManualReviewEntry
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND status IN ?",
			refType, refID, []model.ReviewStatus{model.ReviewStatusPending, model.ReviewStatusInReview}).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *reviewRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ManualReviewEntry, error) {
	var entry model.ManualReviewEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *reviewRepo) FindPending(ctx context.Context) ([]model.ManualReviewEntry, error) {
	var entries []model.ManualReviewEntry
	err := r.db.WithContext(ctx).
		Where("status IN ?", []model.ReviewStatus{model.ReviewStatusPending, model.ReviewStatusInReview}).
		Order("priority DESC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *reviewRepo) Create(ctx context.Context, entry *model.ManualReviewEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *reviewRepo) Update(ctx context.Context, entry *model.ManualReviewEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

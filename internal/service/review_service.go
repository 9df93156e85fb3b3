package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReviewService interface {
	// CreateOrEscalate files a manual-review entry for a reference. If an
	// open entry already exists its priority is raised to the max of old
	// and new instead of creating a duplicate.
	CreateOrEscalate(ctx context.Context, refType, refID string, reason model.ReviewReason, priority int, details apperr.Details) (*model.ManualReviewEntry, error)
	Resolve(ctx context.Context, id uuid.UUID, userID string, status model.ReviewStatus, notes string) (*model.ManualReviewEntry, error)
	ListPending(ctx context.Context) ([]model.ManualReviewEntry, error)
}

type reviewService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewReviewService(store repository.Store, logger *zap.Logger) ReviewService {
	return &reviewService{store: store, logger: logger}
}

func (s *reviewService) CreateOrEscalate(ctx context.Context, refType, refID string, reason model.ReviewReason, priority int, details apperr.Details) (*model.ManualReviewEntry, error) {
	existing, err := s.store.Reviews().FindOpenByReference(ctx, refType, refID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up open review entry: %w", err)
	}

	if existing != nil {
		if priority > existing.Priority {
			existing.Priority = priority
		}
		existing.Reason = reason
		existing.Details = model.JSONMap(details)
		if err := s.store.Reviews().Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("escalate review entry: %w", err)
		}
		s.logger.Info("escalated existing manual review entry",
			zap.String("reference_id", refID),
			zap.String("reason", string(reason)),
			zap.Int("priority", existing.Priority),
		)
		return existing, nil
	}

	entry := &model.ManualReviewEntry{
		ReferenceType: refType,
		ReferenceID:   refID,
		Reason:        reason,
		Status:        model.ReviewStatusPending,
		Priority:      priority,
		Details:       model.JSONMap(details),
	}
	if err := s.store.Reviews().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create review entry: %w", err)
	}
	s.logger.Info("created manual review entry",
		zap.String("reference_id", refID),
		zap.String("reason", string(reason)),
		zap.Int("priority", priority),
	)
	return entry, nil
}

func (s *reviewService) Resolve(ctx context.Context, id uuid.UUID, userID string, status model.ReviewStatus, notes string) (*model.ManualReviewEntry, error) {
	switch status {
	case model.ReviewStatusInReview, model.ReviewStatusResolved, model.ReviewStatusEscalated, model.ReviewStatusCancelled:
	default:
		return nil, fmt.Errorf("invalid review transition to %q", status)
	}

	entry, err := s.store.Reviews().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.Status.IsOpen() {
		return nil, fmt.Errorf("review entry %s is already closed (%s)", id, entry.Status)
	}

	entry.Status = status
	entry.Notes = notes
	if status != model.ReviewStatusInReview {
		now := time.Now()
		entry.ResolvedBy = userID
		entry.ResolvedAt = &now
	}
	entry.UpdatedBy = userID
	if err := s.store.Reviews().Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *reviewService) ListPending(ctx context.Context) ([]model.ManualReviewEntry, error) {
	return s.store.Reviews().FindPending(ctx)
}

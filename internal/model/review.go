package model

import "time"

type ReviewReason string

const (
	ReviewReasonMissingRecipe          ReviewReason = "missing_recipe"
	ReviewReasonInsufficientStock      ReviewReason = "insufficient_stock"
	ReviewReasonInventoryNotFound      ReviewReason = "inventory_not_found"
	ReviewReasonRecipeCircular         ReviewReason = "recipe_circular_dependency"
	ReviewReasonSyncConflict           ReviewReason = "sync_conflict"
	ReviewReasonConcurrentModification ReviewReason = "concurrent_modification"
	ReviewReasonOther                  ReviewReason = "other"
)

type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusInReview  ReviewStatus = "in_review"
	ReviewStatusResolved  ReviewStatus = "resolved"
	ReviewStatusEscalated ReviewStatus = "escalated"
	ReviewStatusCancelled ReviewStatus = "cancelled"
)

// IsOpen reports whether the entry still needs a human decision.
func (s ReviewStatus) IsOpen() bool {
	return s == ReviewStatusPending || s == ReviewStatusInReview
}

// ManualReviewEntry is the human-in-the-loop queue row the deduction
// service files when an order's inventory processing could not complete
// automatically.
type ManualReviewEntry struct {
	BaseModel
	ReferenceType string       `gorm:"type:varchar(32);not null;index:idx_review_ref" json:"reference_type"`
	ReferenceID   string       `gorm:"type:varchar(64);not null;index:idx_review_ref" json:"reference_id"`
	Reason        ReviewReason `gorm:"type:varchar(32);not null" json:"reason" validate:"required,oneof=missing_recipe insufficient_stock inventory_not_found recipe_circular_dependency sync_conflict concurrent_modification other"`
	Status        ReviewStatus `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	Priority      int          `gorm:"not null;default:0" json:"priority"`
	Details       JSONMap      `gorm:"type:jsonb" json:"details"`

	ResolvedBy string     `gorm:"type:varchar(255)" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Notes      string     `gorm:"type:text" json:"notes,omitempty"`
}

package dto

import "github.com/classbadges/classbadges-api/internal/models"

// CreateSubmissionRequest is the payload a student sends with evidence for
// a badge. The evidence URL is an opaque reference into the evidence store.
type CreateSubmissionRequest struct {
	BadgeID     string `json:"badge_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	EvidenceURL string `json:"evidence_url" validate:"required,url"`
}

// ReviewSubmissionRequest carries a single review decision.
type ReviewSubmissionRequest struct {
	Status  models.SubmissionStatus `json:"status" validate:"required"`
	Comment string                  `json:"comment"`
}

// BulkReviewRequest applies one decision to a batch of submissions. A
// rejection comment is broadcast to every item in the batch.
type BulkReviewRequest struct {
	IDs     []string                `json:"ids" validate:"required,min=1"`
	Status  models.SubmissionStatus `json:"status" validate:"required"`
	Comment string                  `json:"comment"`
}

// UpdateVisibilityRequest sets the owner-controlled visibility flags on an
// approved submission.
type UpdateVisibilityRequest struct {
	IsVisible    bool `json:"is_visible"`
	ShowEvidence bool `json:"show_evidence"`
}

// SubmissionQuery captures list filters from query parameters.
type SubmissionQuery struct {
	BadgeID  string
	Status   []models.SubmissionStatus
	Page     int
	PageSize int
}

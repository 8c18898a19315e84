package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionStatus tracks the review state of one evidence submission.
// PENDING is the only state a review can start from; APPROVED and REJECTED
// are terminal for the record. A student resubmits by creating a new record.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// Valid reports whether the status is a known submission status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// Comment is one reviewer or student note attached to a submission.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentList is the ordered comment collection stored as a jsonb column.
type CommentList []Comment

// Value implements driver.Valuer for jsonb storage.
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		l = CommentList{}
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal comments: %w", err)
	}
	return raw, nil
}

// Scan implements sql.Scanner for jsonb storage.
func (l *CommentList) Scan(src interface{}) error {
	if src == nil {
		*l = CommentList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported comments column type %T", src)
	}
	if len(raw) == 0 {
		*l = CommentList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Submission is one student's evidence for one badge, routed to one teacher.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	BadgeID      string           `db:"badge_id" json:"badge_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	TeacherID    string           `db:"teacher_id" json:"teacher_id"`
	Status       SubmissionStatus `db:"status" json:"status"`
	EvidenceURL  string           `db:"evidence_url" json:"evidence_url"`
	Comments     CommentList      `db:"comments" json:"comments"`
	IsVisible    bool             `db:"is_visible" json:"is_visible"`
	ShowEvidence bool             `db:"show_evidence" json:"show_evidence"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter captures list criteria for submissions.
type SubmissionFilter struct {
	BadgeID   string
	StudentID string
	TeacherID string
	Status    []SubmissionStatus
	Page      int
	PageSize  int
}

// BulkReviewResult summarises a bulk review call. Items fail individually;
// a failed item never rolls back siblings already committed.
type BulkReviewResult struct {
	UpdatedCount int           `json:"updated_count"`
	Failures     []BulkFailure `json:"failures"`
}

// BulkFailure reports one submission that could not be reviewed.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

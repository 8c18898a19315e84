package models

import "time"

// EarnedBadge is the permanent record that a student holds a badge. It is
// created only by the review pipeline on approval and is immutable except
// for its reactions. At most one record exists per (student, badge) pair,
// enforced by a unique index at the storage layer.
type EarnedBadge struct {
	ID        string      `db:"id" json:"id"`
	BadgeID   string      `db:"badge_id" json:"badge_id"`
	StudentID string      `db:"student_id" json:"student_id"`
	AwardedAt time.Time   `db:"awarded_at" json:"awarded_at"`
	Reactions ReactionSet `db:"reactions" json:"reactions"`
}

// FeedEntry is an earned badge joined with display fields for the
// community feed.
type FeedEntry struct {
	EarnedBadgeID string      `db:"earned_badge_id" json:"earned_badge_id"`
	BadgeID       string      `db:"badge_id" json:"badge_id"`
	BadgeName     string      `db:"badge_name" json:"badge_name"`
	Category      string      `db:"category" json:"category"`
	Difficulty    int         `db:"difficulty" json:"difficulty"`
	StudentID     string      `db:"student_id" json:"student_id"`
	StudentName   string      `db:"student_name" json:"student_name"`
	AwardedAt     time.Time   `db:"awarded_at" json:"awarded_at"`
	Reactions     ReactionSet `db:"reactions" json:"reactions"`
}

package models

import "time"

// Badge represents a defined credential template created by a teacher.
type Badge struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Criteria    string      `db:"criteria" json:"criteria"`
	Difficulty  int         `db:"difficulty" json:"difficulty"`
	Category    string      `db:"category" json:"category"`
	ImageURL    *string     `db:"image_url" json:"image_url,omitempty"`
	Visible     bool        `db:"visible" json:"visible"`
	CreatedBy   string      `db:"created_by" json:"created_by"`
	Reactions   ReactionSet `db:"reactions" json:"reactions"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// BadgeFilter captures filtering criteria for the badge catalog.
type BadgeFilter struct {
	Category  string
	Visible   *bool
	CreatedBy string
	Search    string
	Page      int
	PageSize  int
}

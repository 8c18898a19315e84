package dto

import "github.com/classbadges/classbadges-api/internal/models"

// CreateBadgeRequest is the payload for defining a new badge template.
type CreateBadgeRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Criteria    string  `json:"criteria" validate:"required"`
	Difficulty  int     `json:"difficulty" validate:"required,min=1,max=5"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Visible     bool    `json:"visible"`
}

// UpdateBadgeRequest mutates template fields of an existing badge.
type UpdateBadgeRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Criteria    string  `json:"criteria" validate:"required"`
	Difficulty  int     `json:"difficulty" validate:"required,min=1,max=5"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Visible     *bool   `json:"visible"`
}

// ToggleReactionRequest flips the actor's membership in one reaction type.
type ToggleReactionRequest struct {
	Type models.ReactionType `json:"type" validate:"required"`
}

// BadgeQuery captures catalog list filters from query parameters.
type BadgeQuery struct {
	Category string
	Search   string
	Page     int
	PageSize int
}

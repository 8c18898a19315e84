package dto

import "github.com/classbadges/classbadges-api/internal/models"

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating user profile fields.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Active   *bool  `json:"active"`
}

// AssignRoleRequest sets the stored role of a user, subject to policy.
type AssignRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
}

// ResetCredentialRequest resets a user's password to a temporary value.
// The target must change it at next login.
type ResetCredentialRequest struct {
	TempPassword string `json:"temp_password" validate:"required,min=6"`
}

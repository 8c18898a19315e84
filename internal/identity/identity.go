package identity

import (
	"strings"

	"github.com/classbadges/classbadges-api/internal/models"
)

// Tier is an actor's effective permission level. It is derived once per
// request from the verified email plus the stored role claim and passed
// explicitly into every policy and service call.
type Tier int

const (
	TierStudent Tier = iota
	TierTeacher
	TierAdmin
	TierSuperAdmin
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierSuperAdmin:
		return "SUPER_ADMIN"
	case TierAdmin:
		return "ADMIN"
	case TierTeacher:
		return "TEACHER"
	default:
		return "STUDENT"
	}
}

// Actor is a resolved identity: normalized email plus effective tier.
type Actor struct {
	UserID string
	Email  string
	Tier   Tier
}

// NormalizeEmail lowercases and trims an email. Two emails denote the same
// identity iff their normalized forms are equal.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// TierFor maps a stored role onto its base tier. The super-admin tier is
// never reachable from a stored role; only the resolver grants it.
func TierFor(role models.UserRole) Tier {
	switch role {
	case models.RoleAdmin:
		return TierAdmin
	case models.RoleTeacher:
		return TierTeacher
	default:
		return TierStudent
	}
}

// Resolver computes effective tiers. The super-admin email is injected at
// startup; no other code compares against it directly.
type Resolver struct {
	superAdminEmail string
}

// NewResolver constructs a resolver with the configured super-admin email.
func NewResolver(superAdminEmail string) *Resolver {
	return &Resolver{superAdminEmail: NormalizeEmail(superAdminEmail)}
}

// IsSuperAdmin reports whether the email denotes the super-admin identity.
func (r *Resolver) IsSuperAdmin(email string) bool {
	return r.superAdminEmail != "" && NormalizeEmail(email) == r.superAdminEmail
}

// Resolve computes the actor for a claimed email and stored role claim.
// The super-admin identity is always resolved to the top tier regardless
// of its stored role.
func (r *Resolver) Resolve(userID, claimedEmail string, claimedRole models.UserRole) Actor {
	email := NormalizeEmail(claimedEmail)
	actor := Actor{UserID: userID, Email: email}

	if r.IsSuperAdmin(email) {
		actor.Tier = TierSuperAdmin
		return actor
	}

	actor.Tier = TierFor(claimedRole)
	return actor
}

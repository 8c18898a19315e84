package identity

import "github.com/classbadges/classbadges-api/internal/models"

// Policy holds the pure authorization predicates. Every decision is a
// function of the resolved actor and the target's current state; denials
// carry no information about the target beyond the not-found check.
type Policy struct {
	resolver *Resolver
}

// NewPolicy constructs a policy bound to the identity resolver.
func NewPolicy(resolver *Resolver) *Policy {
	return &Policy{resolver: resolver}
}

// CanReviewSubmission reports whether the actor may transition the
// submission. Admins and above review anything; a teacher reviews only
// submissions assigned to them.
func (p *Policy) CanReviewSubmission(actor Actor, submission *models.Submission) bool {
	if submission == nil {
		return false
	}
	if actor.Tier >= TierAdmin {
		return true
	}
	if actor.Tier == TierTeacher {
		return submission.TeacherID == actor.UserID
	}
	return false
}

// CanAssignRole reports whether the actor may set the target's role.
// Promotion to admin requires the super-admin; the super-admin identity's
// stored role can only be touched by the super-admin.
func (p *Policy) CanAssignRole(actor Actor, target *models.User, newRole models.UserRole) bool {
	if target == nil || actor.Tier < TierAdmin {
		return false
	}
	if newRole == models.RoleAdmin && actor.Tier < TierSuperAdmin {
		return false
	}
	if p.resolver.IsSuperAdmin(target.Email) && actor.Tier < TierSuperAdmin {
		return false
	}
	return true
}

// CanResetCredential reports whether the actor may reset the target's
// password. The super-admin identity's credential is never resettable
// through this path.
func (p *Policy) CanResetCredential(actor Actor, target *models.User) bool {
	if target == nil || p.resolver.IsSuperAdmin(target.Email) {
		return false
	}
	switch actor.Tier {
	case TierSuperAdmin:
		return true
	case TierAdmin:
		return target.Role != models.RoleAdmin
	case TierTeacher:
		return target.Role == models.RoleStudent
	default:
		return false
	}
}

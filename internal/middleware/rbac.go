package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
	"github.com/classbadges/classbadges-api/pkg/response"
)

// RBAC gates a route on the caller's resolved tier, not the raw role claim.
// Role entries admit actors whose effective tier matches; a gate that admits
// admins also admits the super-admin, whatever role its row stores. "SELF"
// additionally admits the actor targeted by the :id route parameter.
func RBAC(resolver *identity.Resolver, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		actor := resolver.Resolve(claims.UserID, claims.Email, claims.Role)

		allowSelf := false
		admitsAdmin := false
		allowedTiers := make(map[identity.Tier]struct{})

		for _, a := range allowed {
			if a == "SELF" {
				allowSelf = true
				continue
			}
			tier := identity.TierFor(models.UserRole(a))
			allowedTiers[tier] = struct{}{}
			if tier == identity.TierAdmin {
				admitsAdmin = true
			}
		}

		if _, ok := allowedTiers[actor.Tier]; ok {
			c.Next()
			return
		}
		if actor.Tier == identity.TierSuperAdmin && admitsAdmin {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == actor.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(resolver *identity.Resolver, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(resolver, allowed...)
}

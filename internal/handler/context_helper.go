package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/middleware"
	"github.com/classbadges/classbadges-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the authenticated caller into an actor with an
// effective tier. The second return is false when no valid claims exist.
func actorFromContext(c *gin.Context, resolver *identity.Resolver) (identity.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return identity.Actor{}, false
	}
	return resolver.Resolve(claims.UserID, claims.Email, claims.Role), true
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

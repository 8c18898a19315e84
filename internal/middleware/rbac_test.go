package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
)

func runRBAC(claims *models.JWTClaims, targetID string, handler gin.HandlerFunc) (*httptest.ResponseRecorder, bool) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	if targetID != "" {
		c.Params = gin.Params{{Key: "id", Value: targetID}}
	}
	handler(c)
	return w, c.IsAborted()
}

func TestRBACSuperAdminClearsAdminGate(t *testing.T) {
	resolver := identity.NewResolver("root@school.edu")
	gate := RequireRoles(resolver, models.RoleAdmin)

	// super-admin whose stored role never got promoted
	claims := &models.JWTClaims{UserID: "u1", Email: "root@school.edu", Role: models.RoleStudent}
	_, aborted := runRBAC(claims, "", gate)
	assert.False(t, aborted)
}

func TestRBACStoredRoleGatesEveryoneElse(t *testing.T) {
	resolver := identity.NewResolver("root@school.edu")
	gate := RequireRoles(resolver, models.RoleAdmin)

	claims := &models.JWTClaims{UserID: "u2", Email: "teacher@school.edu", Role: models.RoleTeacher}
	w, aborted := runRBAC(claims, "", gate)
	assert.True(t, aborted)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACStudentOnlyGateStaysStudentOnly(t *testing.T) {
	resolver := identity.NewResolver("root@school.edu")
	gate := RequireRoles(resolver, models.RoleStudent)

	claims := &models.JWTClaims{UserID: "u1", Email: "root@school.edu", Role: models.RoleStudent}
	w, aborted := runRBAC(claims, "", gate)
	assert.True(t, aborted)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfParameter(t *testing.T) {
	resolver := identity.NewResolver("root@school.edu")
	gate := RBAC(resolver, "ADMIN", "SELF")

	claims := &models.JWTClaims{UserID: "kid-1", Email: "kid@school.edu", Role: models.RoleStudent}
	_, aborted := runRBAC(claims, "kid-1", gate)
	assert.False(t, aborted)

	w, aborted := runRBAC(claims, "someone-else", gate)
	assert.True(t, aborted)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	resolver := identity.NewResolver("root@school.edu")
	gate := RequireRoles(resolver, models.RoleAdmin)

	w, aborted := runRBAC(nil, "", gate)
	assert.True(t, aborted)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

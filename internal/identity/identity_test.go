package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/classbadges/classbadges-api/internal/models"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "kid@example.com", NormalizeEmail("  KID@Example.COM  "))
	assert.Equal(t, "kid@example.com", NormalizeEmail("kid@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestResolverSuperAdmin(t *testing.T) {
	resolver := NewResolver("Root@School.EDU")

	assert.True(t, resolver.IsSuperAdmin("root@school.edu"))
	assert.True(t, resolver.IsSuperAdmin("  ROOT@school.edu "))
	assert.False(t, resolver.IsSuperAdmin("admin@school.edu"))
}

func TestResolverEmptySuperAdminNeverMatches(t *testing.T) {
	resolver := NewResolver("")
	assert.False(t, resolver.IsSuperAdmin(""))
	assert.False(t, resolver.IsSuperAdmin("anyone@example.com"))
}

func TestResolveTiers(t *testing.T) {
	resolver := NewResolver("root@school.edu")

	tests := []struct {
		name  string
		email string
		role  models.UserRole
		want  Tier
	}{
		{"super admin overrides stored role", "root@school.edu", models.RoleStudent, TierSuperAdmin},
		{"super admin case insensitive", "ROOT@School.edu", models.RoleTeacher, TierSuperAdmin},
		{"admin role", "admin@school.edu", models.RoleAdmin, TierAdmin},
		{"teacher role", "teach@school.edu", models.RoleTeacher, TierTeacher},
		{"student role", "kid@school.edu", models.RoleStudent, TierStudent},
		{"unknown role defaults to student", "odd@school.edu", models.UserRole("OTHER"), TierStudent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := resolver.Resolve("u1", tt.email, tt.role)
			assert.Equal(t, tt.want, actor.Tier)
			assert.Equal(t, NormalizeEmail(tt.email), actor.Email)
		})
	}
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, TierSuperAdmin > TierAdmin)
	assert.True(t, TierAdmin > TierTeacher)
	assert.True(t, TierTeacher > TierStudent)
}

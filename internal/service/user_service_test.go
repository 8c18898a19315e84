package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

type mockUserRepo struct {
	users           map[string]*models.User
	listUsers       []models.User
	listCount       int
	listErr         error
	roleUpdates     map[string]models.UserRole
	passwordRequire *bool
	tokensRevoked   bool
	auditLogs       []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	if m.roleUpdates == nil {
		m.roleUpdates = make(map[string]models.UserRole)
	}
	m.roleUpdates[id] = role
	if user, ok := m.users[id]; ok {
		user.Role = role
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, requireChange bool, updatedAt time.Time) error {
	m.passwordRequire = &requireChange
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.tokensRevoked = true
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

const testSuperAdminEmail = "root@school.edu"

func newTestUserService(repo *mockUserRepo) *UserService {
	resolver := identity.NewResolver(testSuperAdminEmail)
	return NewUserService(repo, identity.NewPolicy(resolver), validator.New(), zap.NewNop())
}

func adminActor() identity.Actor {
	return identity.Actor{UserID: "admin-1", Email: "admin@school.edu", Tier: identity.TierAdmin}
}

func superAdminActor() identity.Actor {
	return identity.Actor{UserID: "root-1", Email: testSuperAdminEmail, Tier: identity.TierSuperAdmin}
}

func TestUserServiceListForbiddenForStudents(t *testing.T) {
	svc := newTestUserService(&mockUserRepo{})
	_, _, err := svc.List(context.Background(), models.UserFilter{}, identity.Actor{UserID: "s1", Tier: identity.TierStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := newTestUserService(repo)
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10}, adminActor())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceCreateNormalizesEmail(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := newTestUserService(repo)
	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "USER@Example.COM", FullName: "User", Password: "secret1", Role: models.RoleStudent, Active: true,
	}, adminActor(), models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.NotEmpty(t, repo.auditLogs)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "user@example.com"}}}
	svc := newTestUserService(repo)
	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "User@example.com", FullName: "User", Password: "secret1", Role: models.RoleStudent,
	}, adminActor(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateAdminRequiresSuperAdmin(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := newTestUserService(repo)

	req := dto.CreateUserRequest{Email: "new@example.com", FullName: "New", Password: "secret1", Role: models.RoleAdmin}
	_, err := svc.Create(context.Background(), req, adminActor(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), req, superAdminActor(), models.LoginRequest{})
	require.NoError(t, err)
}

func TestUserServiceAssignRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"t1": {ID: "t1", Email: "teach@example.com", Role: models.RoleTeacher}}}
	svc := newTestUserService(repo)

	user, err := svc.AssignRole(context.Background(), "t1", dto.AssignRoleRequest{Role: models.RoleStudent}, adminActor(), models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, models.RoleStudent, repo.roleUpdates["t1"])
	assert.NotEmpty(t, repo.auditLogs)
}

func TestUserServiceAssignRolePromotionNeedsSuperAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"t1": {ID: "t1", Email: "teach@example.com", Role: models.RoleTeacher}}}
	svc := newTestUserService(repo)

	_, err := svc.AssignRole(context.Background(), "t1", dto.AssignRoleRequest{Role: models.RoleAdmin}, adminActor(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.AssignRole(context.Background(), "t1", dto.AssignRoleRequest{Role: models.RoleAdmin}, superAdminActor(), models.LoginRequest{})
	require.NoError(t, err)
}

func TestUserServiceAssignRoleSuperAdminTargetProtected(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"r1": {ID: "r1", Email: testSuperAdminEmail, Role: models.RoleAdmin}}}
	svc := newTestUserService(repo)

	_, err := svc.AssignRole(context.Background(), "r1", dto.AssignRoleRequest{Role: models.RoleTeacher}, adminActor(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceResetCredential(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[string]*models.User{"s1": {ID: "s1", Email: "kid@example.com", Role: models.RoleStudent, PasswordHash: string(oldHash)}}}
	svc := newTestUserService(repo)

	teacher := identity.Actor{UserID: "t1", Email: "teach@example.com", Tier: identity.TierTeacher}
	err := svc.ResetCredential(context.Background(), "s1", dto.ResetCredentialRequest{TempPassword: "temp123"}, teacher, models.LoginRequest{})
	require.NoError(t, err)
	require.NotNil(t, repo.passwordRequire)
	assert.True(t, *repo.passwordRequire)
	assert.True(t, repo.tokensRevoked)
	assert.NotEqual(t, string(oldHash), repo.users["s1"].PasswordHash)
}

func TestUserServiceResetCredentialTeacherCannotResetStaff(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"t2": {ID: "t2", Email: "peer@example.com", Role: models.RoleTeacher}}}
	svc := newTestUserService(repo)

	teacher := identity.Actor{UserID: "t1", Email: "teach@example.com", Tier: identity.TierTeacher}
	err := svc.ResetCredential(context.Background(), "t2", dto.ResetCredentialRequest{TempPassword: "temp123"}, teacher, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceResetCredentialNeverForSuperAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"r1": {ID: "r1", Email: testSuperAdminEmail, Role: models.RoleAdmin}}}
	svc := newTestUserService(repo)

	err := svc.ResetCredential(context.Background(), "r1", dto.ResetCredentialRequest{TempPassword: "temp123"}, superAdminActor(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

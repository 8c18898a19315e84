package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	"github.com/classbadges/classbadges-api/internal/repository"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

type mockSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[string]*models.Submission
	pendingByID []models.Submission
	reviewErrs  map[string]error
	reviewed    []repository.ReviewParams
	earnCreated bool
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.submissions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, sub := range m.submissions {
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && sub.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *sub)
	}
	return out, len(out), nil
}

func (m *mockSubmissionRepo) ListPendingByIDs(ctx context.Context, ids []string, teacherID string) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingByID != nil {
		return m.pendingByID, nil
	}
	var out []models.Submission
	for _, id := range ids {
		sub, ok := m.submissions[id]
		if !ok || sub.Status != models.SubmissionPending {
			continue
		}
		if teacherID != "" && sub.TeacherID != teacherID {
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submissions == nil {
		m.submissions = make(map[string]*models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "sub-new"
	}
	cp := *submission
	m.submissions[submission.ID] = &cp
	return nil
}

func (m *mockSubmissionRepo) UpdateVisibility(ctx context.Context, id, studentID string, isVisible, showEvidence bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok || sub.StudentID != studentID {
		return sql.ErrNoRows
	}
	sub.IsVisible = isVisible
	sub.ShowEvidence = showEvidence
	return nil
}

func (m *mockSubmissionRepo) Review(ctx context.Context, params repository.ReviewParams) (*repository.ReviewOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.reviewErrs[params.ID]; ok {
		return nil, err
	}
	sub, ok := m.submissions[params.ID]
	if !ok || sub.Status != models.SubmissionPending {
		return nil, sql.ErrNoRows
	}
	sub.Status = params.Status
	m.reviewed = append(m.reviewed, params)
	outcome := &repository.ReviewOutcome{}
	if params.Status == models.SubmissionApproved && !m.earnCreated {
		m.earnCreated = true
		outcome.EarnCreated = true
	}
	return outcome, nil
}

type mockEarnedChecker struct {
	exists bool
}

func (m *mockEarnedChecker) ExistsForStudentBadge(ctx context.Context, studentID, badgeID string) (bool, error) {
	return m.exists, nil
}

type mockBadgeFinder struct {
	badges map[string]*models.Badge
}

func (m *mockBadgeFinder) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	if badge, ok := m.badges[id]; ok {
		return badge, nil
	}
	return nil, sql.ErrNoRows
}

type mockAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func newTestSubmissionService(repo *mockSubmissionRepo, badges *mockBadgeFinder) (*SubmissionService, *mockAudit) {
	resolver := identity.NewResolver("root@school.edu")
	audit := &mockAudit{}
	if badges == nil {
		badges = &mockBadgeFinder{}
	}
	svc := NewSubmissionService(repo, &mockEarnedChecker{}, badges, audit, identity.NewPolicy(resolver), nil, validator.New(), zap.NewNop())
	return svc, audit
}

func pendingSubmission(id, teacherID string) *models.Submission {
	return &models.Submission{
		ID:        id,
		BadgeID:   "badge-1",
		StudentID: "kid-1",
		TeacherID: teacherID,
		Status:    models.SubmissionPending,
	}
}

func teacherActor(id string) identity.Actor {
	return identity.Actor{UserID: id, Email: id + "@school.edu", Tier: identity.TierTeacher}
}

func TestSubmitCreatesPending(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: make(map[string]*models.Submission)}
	badges := &mockBadgeFinder{badges: map[string]*models.Badge{"badge-1": {ID: "badge-1", Visible: true}}}
	svc, _ := newTestSubmissionService(repo, badges)

	student := identity.Actor{UserID: "kid-1", Email: "kid@school.edu", Tier: identity.TierStudent}
	sub, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		BadgeID: "badge-1", TeacherID: "t1", EvidenceURL: "https://evidence.example.com/1",
	}, student)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, sub.Status)
	assert.Equal(t, "kid-1", sub.StudentID)
}

func TestSubmitAlreadyEarnedConflict(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: make(map[string]*models.Submission)}
	badges := &mockBadgeFinder{badges: map[string]*models.Badge{"badge-1": {ID: "badge-1", Visible: true}}}
	resolver := identity.NewResolver("root@school.edu")
	svc := NewSubmissionService(repo, &mockEarnedChecker{exists: true}, badges, &mockAudit{}, identity.NewPolicy(resolver), nil, validator.New(), zap.NewNop())

	student := identity.Actor{UserID: "kid-1", Email: "kid@school.edu", Tier: identity.TierStudent}
	_, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		BadgeID: "badge-1", TeacherID: "t1", EvidenceURL: "https://evidence.example.com/1",
	}, student)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "badge already earned", appErr.Message)
	assert.Empty(t, repo.submissions)
}

func TestSubmitHiddenBadgeNotFound(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: make(map[string]*models.Submission)}
	badges := &mockBadgeFinder{badges: map[string]*models.Badge{"badge-1": {ID: "badge-1", Visible: false}}}
	svc, _ := newTestSubmissionService(repo, badges)

	student := identity.Actor{UserID: "kid-1", Tier: identity.TierStudent}
	_, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		BadgeID: "badge-1", TeacherID: "t1", EvidenceURL: "https://evidence.example.com/1",
	}, student)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReviewOneRejectRequiresComment(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	_, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionRejected, Comment: "   ",
	}, teacherActor("t1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "rejection requires a comment")
	assert.Equal(t, models.SubmissionPending, repo.submissions["s1"].Status)
}

func TestReviewOneApproveNeedsNoComment(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, audit := newTestSubmissionService(repo, nil)

	updated, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionApproved,
	}, teacherActor("t1"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, updated.Status)
	assert.Empty(t, updated.Comments)
	assert.NotEmpty(t, audit.logs)
}

func TestReviewOneRejectStampsComment(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	updated, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionRejected, Comment: "evidence does not meet the criteria",
	}, teacherActor("t1"))
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "t1@school.edu", updated.Comments[0].Author)
	assert.Equal(t, "evidence does not meet the criteria", updated.Comments[0].Text)
	assert.False(t, updated.Comments[0].CreatedAt.IsZero())
}

func TestReviewOneUnassignedTeacherForbidden(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	_, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionApproved,
	}, teacherActor("t2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewOneAdminMayReviewAnything(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	admin := identity.Actor{UserID: "a1", Email: "admin@school.edu", Tier: identity.TierAdmin}
	updated, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{Status: models.SubmissionApproved}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, updated.Status)
}

func TestReviewOneAlreadyReviewedConflict(t *testing.T) {
	sub := pendingSubmission("s1", "t1")
	sub.Status = models.SubmissionApproved
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": sub}}
	svc, _ := newTestSubmissionService(repo, nil)

	_, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{Status: models.SubmissionRejected, Comment: "late"}, teacherActor("t1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReviewOneEarnFailureSurfaced(t *testing.T) {
	repo := &mockSubmissionRepo{
		submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")},
		reviewErrs:  map[string]error{"s1": repository.ErrEarnFailed},
	}
	svc, _ := newTestSubmissionService(repo, nil)

	_, err := svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{Status: models.SubmissionApproved}, teacherActor("t1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEarnFailed.Code, appErrors.FromError(err).Code)
}

func TestReviewManyStudentForbidden(t *testing.T) {
	svc, _ := newTestSubmissionService(&mockSubmissionRepo{}, nil)

	_, err := svc.ReviewMany(context.Background(), dto.BulkReviewRequest{
		IDs: []string{"s1"}, Status: models.SubmissionApproved,
	}, identity.Actor{UserID: "kid", Tier: identity.TierStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewManyEmptyScopeNotFound(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{
		"s1": pendingSubmission("s1", "other-teacher"),
	}}
	svc, _ := newTestSubmissionService(repo, nil)

	_, err := svc.ReviewMany(context.Background(), dto.BulkReviewRequest{
		IDs: []string{"s1", "missing"}, Status: models.SubmissionApproved,
	}, teacherActor("t1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "no valid submissions found", appErr.Message)
}

func TestReviewManyScopesToAssignedTeacher(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{
		"mine":   pendingSubmission("mine", "t1"),
		"theirs": pendingSubmission("theirs", "t2"),
	}}
	svc, _ := newTestSubmissionService(repo, nil)

	result, err := svc.ReviewMany(context.Background(), dto.BulkReviewRequest{
		IDs: []string{"mine", "theirs"}, Status: models.SubmissionRejected, Comment: "missing evidence",
	}, teacherActor("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Empty(t, result.Failures)
	assert.Equal(t, models.SubmissionRejected, repo.submissions["mine"].Status)
	assert.Equal(t, models.SubmissionPending, repo.submissions["theirs"].Status)
}

func TestReviewManyReportsPerItemFailures(t *testing.T) {
	repo := &mockSubmissionRepo{
		submissions: map[string]*models.Submission{
			"ok":   pendingSubmission("ok", "t1"),
			"bad":  pendingSubmission("bad", "t1"),
			"race": pendingSubmission("race", "t1"),
		},
		reviewErrs: map[string]error{
			"bad":  repository.ErrEarnFailed,
			"race": sql.ErrNoRows,
		},
	}
	svc, _ := newTestSubmissionService(repo, nil)

	result, err := svc.ReviewMany(context.Background(), dto.BulkReviewRequest{
		IDs: []string{"ok", "bad", "race"}, Status: models.SubmissionApproved,
	}, teacherActor("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	require.Len(t, result.Failures, 2)

	reasons := map[string]string{}
	for _, failure := range result.Failures {
		reasons[failure.ID] = failure.Reason
	}
	assert.Contains(t, reasons["bad"], "earned badge")
	assert.Contains(t, reasons["race"], "already reviewed")
}

func TestReviewOneConcurrentApprovalsSingleWinner(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ReviewOne(context.Background(), "s1", dto.ReviewSubmissionRequest{Status: models.SubmissionApproved}, teacherActor("t1"))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, repo.reviewed, 1)
}

func TestSetVisibilityOwnerOnly(t *testing.T) {
	sub := pendingSubmission("s1", "t1")
	sub.Status = models.SubmissionApproved
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": sub}}
	svc, _ := newTestSubmissionService(repo, nil)

	other := identity.Actor{UserID: "someone-else", Tier: identity.TierStudent}
	_, err := svc.SetVisibility(context.Background(), "s1", dto.UpdateVisibilityRequest{IsVisible: true}, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	owner := identity.Actor{UserID: "kid-1", Tier: identity.TierStudent}
	updated, err := svc.SetVisibility(context.Background(), "s1", dto.UpdateVisibilityRequest{IsVisible: true, ShowEvidence: true}, owner)
	require.NoError(t, err)
	assert.True(t, updated.IsVisible)
	assert.True(t, updated.ShowEvidence)
}

func TestSetVisibilityOnlyAfterApproval(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{"s1": pendingSubmission("s1", "t1")}}
	svc, _ := newTestSubmissionService(repo, nil)

	owner := identity.Actor{UserID: "kid-1", Tier: identity.TierStudent}
	_, err := svc.SetVisibility(context.Background(), "s1", dto.UpdateVisibilityRequest{IsVisible: true}, owner)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

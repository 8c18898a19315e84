package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	"github.com/classbadges/classbadges-api/internal/repository"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

type submissionStore interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	ListPendingByIDs(ctx context.Context, ids []string, teacherID string) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateVisibility(ctx context.Context, id, studentID string, isVisible, showEvidence bool) error
	Review(ctx context.Context, params repository.ReviewParams) (*repository.ReviewOutcome, error)
}

type earnedBadgeChecker interface {
	ExistsForStudentBadge(ctx context.Context, studentID, badgeID string) (bool, error)
}

type badgeFinder interface {
	FindByID(ctx context.Context, id string) (*models.Badge, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmissionService runs the evidence submission and review pipeline:
// pending submissions transition to approved or rejected, and approvals
// mint earned-badge records exactly once per (student, badge) pair.
type SubmissionService struct {
	repo      submissionStore
	earned    earnedBadgeChecker
	badges    badgeFinder
	audit     auditLogger
	policy    *identity.Policy
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService creates an instance of SubmissionService.
func NewSubmissionService(repo submissionStore, earned earnedBadgeChecker, badges badgeFinder, audit auditLogger, policy *identity.Policy, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		repo:      repo,
		earned:    earned,
		badges:    badges,
		audit:     audit,
		policy:    policy,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit creates a new pending submission for the acting student.
func (s *SubmissionService) Submit(ctx context.Context, req dto.CreateSubmissionRequest, actor identity.Actor) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	badge, err := s.badges.FindByID(ctx, req.BadgeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge")
	}
	if !badge.Visible && actor.Tier < identity.TierAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
	}

	earned, err := s.earned.ExistsForStudentBadge(ctx, actor.UserID, req.BadgeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check earned badge")
	}
	if earned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "badge already earned")
	}

	submission := &models.Submission{
		BadgeID:     req.BadgeID,
		StudentID:   actor.UserID,
		TeacherID:   req.TeacherID,
		Status:      models.SubmissionPending,
		EvidenceURL: req.EvidenceURL,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// Get returns a submission visible to the actor: its student, its assigned
// teacher, or an admin.
func (s *SubmissionService) Get(ctx context.Context, id string, actor identity.Actor) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if actor.Tier < identity.TierAdmin && submission.StudentID != actor.UserID && submission.TeacherID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

// List returns submissions scoped to the actor: students see their own,
// teachers see their assigned queue, admins see everything.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor identity.Actor) ([]models.Submission, *models.Pagination, error) {
	filter := models.SubmissionFilter{
		BadgeID:  query.BadgeID,
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	switch {
	case actor.Tier >= identity.TierAdmin:
		// unrestricted
	case actor.Tier == identity.TierTeacher:
		filter.TeacherID = actor.UserID
	default:
		filter.StudentID = actor.UserID
	}

	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return submissions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ReviewOne applies a single pending→approved/rejected transition. On
// approval the earned-badge side effect commits in the same transaction;
// if it fails the submission stays pending.
func (s *SubmissionService) ReviewOne(ctx context.Context, id string, req dto.ReviewSubmissionRequest, actor identity.Actor) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if !s.policy.CanReviewSubmission(actor, submission) {
		return nil, appErrors.ErrForbidden
	}

	comment, err := validateDecision(req.Status, req.Comment)
	if err != nil {
		return nil, err
	}

	if submission.Status != models.SubmissionPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already reviewed")
	}

	updated, err := s.applyReview(ctx, submission, req.Status, comment, actor)
	if err != nil {
		return nil, err
	}

	s.emitReviewAudit(ctx, actor, models.AuditActionSubmissionReview, submission.ID, req.Status)
	return updated, nil
}

// ReviewMany applies one decision to a batch of submissions under a single
// scope resolution. Items are processed independently: a failed item is
// reported in the result and never rolls back committed siblings.
func (s *SubmissionService) ReviewMany(ctx context.Context, req dto.BulkReviewRequest, actor identity.Actor) (*models.BulkReviewResult, error) {
	if actor.Tier < identity.TierTeacher {
		return nil, appErrors.ErrForbidden
	}
	if len(req.IDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids are required")
	}

	comment, err := validateDecision(req.Status, req.Comment)
	if err != nil {
		return nil, err
	}

	teacherScope := ""
	if actor.Tier == identity.TierTeacher {
		teacherScope = actor.UserID
	}

	inScope, err := s.repo.ListPendingByIDs(ctx, req.IDs, teacherScope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve review scope")
	}
	if len(inScope) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no valid submissions found")
	}

	result := &models.BulkReviewResult{Failures: []models.BulkFailure{}}
	for i := range inScope {
		submission := inScope[i]
		if _, err := s.applyReview(ctx, &submission, req.Status, comment, actor); err != nil {
			reason := appErrors.FromError(err).Message
			result.Failures = append(result.Failures, models.BulkFailure{ID: submission.ID, Reason: reason})
			s.logger.Warn("bulk review item failed",
				zap.String("submission_id", submission.ID),
				zap.Error(err))
			continue
		}
		result.UpdatedCount++
	}

	s.emitReviewAudit(ctx, actor, models.AuditActionBulkReview, strings.Join(req.IDs, ","), req.Status)
	return result, nil
}

// SetVisibility updates the owner-controlled flags of an approved submission.
func (s *SubmissionService) SetVisibility(ctx context.Context, id string, req dto.UpdateVisibilityRequest, actor identity.Actor) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if submission.Status != models.SubmissionApproved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "visibility can only be changed after approval")
	}

	if err := s.repo.UpdateVisibility(ctx, id, actor.UserID, req.IsVisible, req.ShowEvidence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visibility")
	}

	submission.IsVisible = req.IsVisible
	submission.ShowEvidence = req.ShowEvidence
	return submission, nil
}

// applyReview runs steps shared by single and bulk review: comment append,
// status transition, and the earn side effect, all within one repository
// transaction.
func (s *SubmissionService) applyReview(ctx context.Context, submission *models.Submission, status models.SubmissionStatus, comment *models.Comment, actor identity.Actor) (*models.Submission, error) {
	params := repository.ReviewParams{
		ID:        submission.ID,
		Status:    status,
		BadgeID:   submission.BadgeID,
		StudentID: submission.StudentID,
	}
	var appended *models.Comment
	if comment != nil {
		c := *comment
		c.Author = actor.Email
		c.CreatedAt = time.Now().UTC()
		appended = &c
		params.Comment = appended
	}

	outcome, err := s.repo.Review(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already reviewed")
		case errors.Is(err, repository.ErrEarnFailed):
			return nil, appErrors.Wrap(err, appErrors.ErrEarnFailed.Code, appErrors.ErrEarnFailed.Status, "failed to record earned badge")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review submission")
		}
	}

	s.metrics.ObserveReview(string(status))
	if outcome.EarnCreated {
		s.metrics.ObserveBadgeEarned()
	}

	updated := *submission
	updated.Status = status
	updated.UpdatedAt = time.Now().UTC()
	if appended != nil {
		updated.Comments = append(append(models.CommentList{}, submission.Comments...), *appended)
	}
	return &updated, nil
}

// validateDecision checks the requested transition and returns the comment
// to append, if any. Rejection requires a non-empty trimmed comment;
// approval does not.
func validateDecision(status models.SubmissionStatus, comment string) (*models.Comment, error) {
	if status != models.SubmissionApproved && status != models.SubmissionRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
	trimmed := strings.TrimSpace(comment)
	if status == models.SubmissionRejected && trimmed == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection requires a comment")
	}
	if trimmed == "" {
		return nil, nil
	}
	return &models.Comment{Text: trimmed}, nil
}

func (s *SubmissionService) emitReviewAudit(ctx context.Context, actor identity.Actor, action, resourceID string, status models.SubmissionStatus) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"status": status, "tier": actor.Tier.String()})
	userID := actor.UserID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "submissions",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}); err != nil {
		s.logger.Warn("failed to persist review audit log", zap.Error(err))
	}
}

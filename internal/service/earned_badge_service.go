package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

const feedCachePrefix = "feed:recent"

type earnedBadgeRepository interface {
	FindByID(ctx context.Context, id string) (*models.EarnedBadge, error)
	ExistsForStudentBadge(ctx context.Context, studentID, badgeID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EarnedBadge, error)
	ListFeed(ctx context.Context, limit int) ([]models.FeedEntry, error)
	UpdateReactions(ctx context.Context, id string, reactions models.ReactionSet) error
}

// EarnedBadgeService serves earned-badge records, the community feed, and
// reactions on earned badges. It never creates earned badges; only the
// review pipeline does that.
type EarnedBadgeService struct {
	repo     earnedBadgeRepository
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewEarnedBadgeService creates an instance of EarnedBadgeService.
func NewEarnedBadgeService(repo earnedBadgeRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *EarnedBadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &EarnedBadgeService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// ListByStudent returns a student's earned badges. Students may only read
// their own; staff may read anyone's.
func (s *EarnedBadgeService) ListByStudent(ctx context.Context, studentID string, actor identity.Actor) ([]models.EarnedBadge, error) {
	if actor.Tier < identity.TierTeacher && actor.UserID != studentID {
		return nil, appErrors.ErrForbidden
	}
	earned, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list earned badges")
	}
	return earned, nil
}

// HasBadge reports whether the student already holds the badge.
func (s *EarnedBadgeService) HasBadge(ctx context.Context, studentID, badgeID string) (bool, error) {
	exists, err := s.repo.ExistsForStudentBadge(ctx, studentID, badgeID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check earned badge")
	}
	return exists, nil
}

// Feed returns the most recent community-visible earned badges.
func (s *EarnedBadgeService) Feed(ctx context.Context, limit int) ([]models.FeedEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("%s:%d", feedCachePrefix, limit)
	var cached []models.FeedEntry
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	entries, err := s.repo.ListFeed(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feed")
	}

	if err := s.cache.Set(ctx, cacheKey, entries, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache feed", zap.Error(err))
	}

	return entries, nil
}

// ToggleReaction flips the actor's membership in one reaction type on an
// earned badge. The record is re-read before the write so the toggle acts
// on current state.
func (s *EarnedBadgeService) ToggleReaction(ctx context.Context, id string, req dto.ToggleReactionRequest, actor identity.Actor) (*models.EarnedBadge, error) {
	earned, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "earned badge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load earned badge")
	}

	updated, err := earned.Reactions.Toggle(req.Type, actor.Email)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateReactions(ctx, id, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reactions")
	}
	earned.Reactions = updated

	s.metrics.ObserveReactionToggle("earned_badge")
	if err := s.cache.Invalidate(ctx, feedCachePrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate feed cache", zap.Error(err))
	}

	return earned, nil
}

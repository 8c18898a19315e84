package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

const badgeCatalogCachePrefix = "badges:catalog"

type badgeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Badge, error)
	List(ctx context.Context, filter models.BadgeFilter) ([]models.Badge, int, error)
	Create(ctx context.Context, badge *models.Badge) error
	Update(ctx context.Context, badge *models.Badge) error
	UpdateReactions(ctx context.Context, id string, reactions models.ReactionSet) error
}

// BadgeService manages the badge catalog and badge-level reactions.
type BadgeService struct {
	repo      badgeRepository
	cache     *CacheService
	metrics   *MetricsService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBadgeService creates an instance of BadgeService.
func NewBadgeService(repo badgeRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &BadgeService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

type cachedCatalog struct {
	Badges     []models.Badge     `json:"badges"`
	Pagination *models.Pagination `json:"pagination"`
}

// List returns catalog badges. Students only see visible badges; staff see
// the whole catalog. Visible listings are served from cache when possible.
func (s *BadgeService) List(ctx context.Context, query dto.BadgeQuery, actor identity.Actor) ([]models.Badge, *models.Pagination, error) {
	filter := models.BadgeFilter{
		Category: query.Category,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	visibleOnly := actor.Tier < identity.TierTeacher
	if visibleOnly {
		visible := true
		filter.Visible = &visible
	}

	cacheKey := ""
	if visibleOnly && query.Search == "" {
		cacheKey = fmt.Sprintf("%s:%s:%d:%d", badgeCatalogCachePrefix, query.Category, filter.Page, filter.PageSize)
		var cached cachedCatalog
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Badges, cached.Pagination, nil
		}
	}

	badges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, cachedCatalog{Badges: badges, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache badge catalog", zap.Error(err))
		}
	}

	return badges, pagination, nil
}

// Get returns a badge. Hidden badges are only visible to staff and to the
// teacher who created them.
func (s *BadgeService) Get(ctx context.Context, id string, actor identity.Actor) (*models.Badge, error) {
	badge, err := s.loadBadge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !badge.Visible && actor.Tier < identity.TierAdmin && badge.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
	}
	return badge, nil
}

// Create defines a new badge template. Teachers and above may create.
func (s *BadgeService) Create(ctx context.Context, req dto.CreateBadgeRequest, actor identity.Actor) (*models.Badge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}
	if actor.Tier < identity.TierTeacher {
		return nil, appErrors.ErrForbidden
	}

	badge := &models.Badge{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		Difficulty:  req.Difficulty,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Visible:     req.Visible,
		CreatedBy:   actor.UserID,
		Reactions:   models.ReactionSet{},
	}

	if err := s.repo.Create(ctx, badge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create badge")
	}

	s.invalidateCatalog(ctx)
	return badge, nil
}

// Update mutates template fields. Only the creator or an admin may update.
func (s *BadgeService) Update(ctx context.Context, id string, req dto.UpdateBadgeRequest, actor identity.Actor) (*models.Badge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}

	badge, err := s.loadBadge(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Tier < identity.TierAdmin && badge.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	badge.Name = req.Name
	badge.Description = req.Description
	badge.Criteria = req.Criteria
	badge.Difficulty = req.Difficulty
	badge.Category = req.Category
	badge.ImageURL = req.ImageURL
	if req.Visible != nil {
		badge.Visible = *req.Visible
	}

	if err := s.repo.Update(ctx, badge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update badge")
	}

	s.invalidateCatalog(ctx)
	return badge, nil
}

// ToggleReaction flips the actor's membership in one reaction type on a
// badge. Toggling the same type twice restores the original collection.
func (s *BadgeService) ToggleReaction(ctx context.Context, id string, req dto.ToggleReactionRequest, actor identity.Actor) (*models.Badge, error) {
	badge, err := s.loadBadge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !badge.Visible && actor.Tier < identity.TierAdmin && badge.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
	}

	updated, err := badge.Reactions.Toggle(req.Type, actor.Email)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateReactions(ctx, id, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reactions")
	}
	badge.Reactions = updated

	s.metrics.ObserveReactionToggle("badge")
	s.invalidateCatalog(ctx)
	return badge, nil
}

func (s *BadgeService) loadBadge(ctx context.Context, id string) (*models.Badge, error) {
	badge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge")
	}
	return badge, nil
}

func (s *BadgeService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, badgeCatalogCachePrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate badge catalog cache", zap.Error(err))
	}
}

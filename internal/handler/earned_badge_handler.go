package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classbadges/classbadges-api/internal/dto"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/service"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
	"github.com/classbadges/classbadges-api/pkg/response"
)

// EarnedBadgeHandler handles earned-badge and feed endpoints.
type EarnedBadgeHandler struct {
	service     *service.EarnedBadgeService
	resolver    *identity.Resolver
	feedEnabled bool
}

// NewEarnedBadgeHandler creates a new earned badge handler.
func NewEarnedBadgeHandler(svc *service.EarnedBadgeService, resolver *identity.Resolver, feedEnabled bool) *EarnedBadgeHandler {
	return &EarnedBadgeHandler{service: svc, resolver: resolver, feedEnabled: feedEnabled}
}

// ListByStudent godoc
// @Summary List a student's earned badges
// @Description List earned badges held by a student
// @Tags EarnedBadges
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/earned-badges [get]
func (h *EarnedBadgeHandler) ListByStudent(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	earned, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, earned, nil)
}

// HasBadge godoc
// @Summary Check badge possession
// @Description Report whether a student already holds a badge
// @Tags EarnedBadges
// @Produce json
// @Param id path string true "Student ID"
// @Param badge_id path string true "Badge ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/earned-badges/{badge_id} [get]
func (h *EarnedBadgeHandler) HasBadge(c *gin.Context) {
	if _, ok := actorFromContext(c, h.resolver); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	earned, err := h.service.HasBadge(c.Request.Context(), c.Param("id"), c.Param("badge_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"earned": earned}, nil)
}

// Feed godoc
// @Summary Community feed
// @Description List the most recent community-visible earned badges
// @Tags EarnedBadges
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /feed [get]
func (h *EarnedBadgeHandler) Feed(c *gin.Context) {
	if !h.feedEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "feed is disabled"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			limit = val
		}
	}

	entries, err := h.service.Feed(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// ToggleReaction godoc
// @Summary Toggle earned badge reaction
// @Description Flip the caller's membership in one reaction type
// @Tags EarnedBadges
// @Accept json
// @Produce json
// @Param id path string true "Earned badge ID"
// @Param payload body dto.ToggleReactionRequest true "Reaction payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /earned-badges/{id}/reactions [post]
func (h *EarnedBadgeHandler) ToggleReaction(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ToggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	earned, err := h.service.ToggleReaction(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, earned, nil)
}

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

// BadgeHandler handles badge catalog endpoints.
type BadgeHandler struct {
	service  *service.BadgeService
	resolver *identity.Resolver
}

// NewBadgeHandler creates a new badge handler.
func NewBadgeHandler(svc *service.BadgeService, resolver *identity.Resolver) *BadgeHandler {
	return &BadgeHandler{service: svc, resolver: resolver}
}

// List godoc
// @Summary List badges
// @Description List catalog badges with pagination and filtering
// @Tags Badges
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param category query string false "Category filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *BadgeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.BadgeQuery
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	query.Category = c.Query("category")
	query.Search = c.Query("search")

	badges, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, badges, pagination)
}

// Get godoc
// @Summary Get badge
// @Description Get badge detail
// @Tags Badges
// @Produce json
// @Param id path string true "Badge ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /badges/{id} [get]
func (h *BadgeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	badge, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, badge, nil)
}

// Create godoc
// @Summary Create badge
// @Description Define a new badge template
// @Tags Badges
// @Accept json
// @Produce json
// @Param payload body dto.CreateBadgeRequest true "Badge payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /badges [post]
func (h *BadgeHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	badge, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, badge)
}

// Update godoc
// @Summary Update badge
// @Description Update badge template fields
// @Tags Badges
// @Accept json
// @Produce json
// @Param id path string true "Badge ID"
// @Param payload body dto.UpdateBadgeRequest true "Badge payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /badges/{id} [put]
func (h *BadgeHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	badge, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, badge, nil)
}

// ToggleReaction godoc
// @Summary Toggle badge reaction
// @Description Flip the caller's membership in one reaction type
// @Tags Badges
// @Accept json
// @Produce json
// @Param id path string true "Badge ID"
// @Param payload body dto.ToggleReactionRequest true "Reaction payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /badges/{id}/reactions [post]
func (h *BadgeHandler) ToggleReaction(c *gin.Context) {
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

	badge, err := h.service.ToggleReaction(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, badge, nil)
}

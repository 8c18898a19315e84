package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/service"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
	"github.com/classbadges/classbadges-api/pkg/response"
)

// TranscriptHandler handles transcript export endpoints.
type TranscriptHandler struct {
	service  *service.TranscriptService
	resolver *identity.Resolver
}

// NewTranscriptHandler creates a new transcript handler.
func NewTranscriptHandler(svc *service.TranscriptService, resolver *identity.Resolver) *TranscriptHandler {
	return &TranscriptHandler{service: svc, resolver: resolver}
}

// Generate godoc
// @Summary Generate transcript
// @Description Render a student's earned-badge history and return a signed download link
// @Tags Transcripts
// @Produce json
// @Param id path string true "Student ID"
// @Param format query string false "File format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/transcript [post]
func (h *TranscriptHandler) Generate(c *gin.Context) {
	actor, ok := actorFromContext(c, h.resolver)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", service.TranscriptFormatPDF)
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"), format, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        result.URL,
		"format":     result.Format,
		"expires_at": result.ExpiresAt,
	}, nil)
}

// Download godoc
// @Summary Download transcript
// @Description Stream a previously generated transcript by signed token
// @Tags Transcripts
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcripts/download/{token} [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	token := c.Param("token")
	_, relPath, _, err := h.service.ParseToken(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "transcript file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat transcript file"))
		return
	}

	mimeType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".csv":
		mimeType = "text/csv"
	case ".pdf":
		mimeType = "application/pdf"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, file, nil)
}

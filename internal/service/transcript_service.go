package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/models"
	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
	"github.com/classbadges/classbadges-api/pkg/export"
	"github.com/classbadges/classbadges-api/pkg/storage"
)

// Transcript formats.
const (
	TranscriptFormatCSV = "csv"
	TranscriptFormatPDF = "pdf"
)

type transcriptSource interface {
	ListTranscriptRows(ctx context.Context, studentID string) ([]models.FeedEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// TranscriptConfig tunes transcript generation.
type TranscriptConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// TranscriptResult captures successful generation metadata.
type TranscriptResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// TranscriptService renders a student's earned-badge history as a CSV or
// PDF file and hands out signed download links.
type TranscriptService struct {
	earned  transcriptSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     TranscriptConfig
}

// NewTranscriptService constructs a TranscriptService.
func NewTranscriptService(earned transcriptSource, store fileStorage, signer *storage.SignedURLSigner, cfg TranscriptConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &TranscriptService{
		earned:  earned,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the student's transcript and stores the file. Students
// may only export their own transcript; staff export anyone's.
func (s *TranscriptService) Generate(ctx context.Context, studentID, format string, actor identity.Actor) (*TranscriptResult, error) {
	if actor.Tier < identity.TierTeacher && actor.UserID != studentID {
		return nil, appErrors.ErrForbidden
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format != TranscriptFormatCSV && format != TranscriptFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported transcript format %q", format))
	}

	rows, err := s.earned.ListTranscriptRows(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript rows")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no earned badges to export")
	}

	dataset, title := buildTranscriptDataset(rows)

	var payload []byte
	switch format {
	case TranscriptFormatCSV:
		payload, err = s.csv.Render(dataset)
	case TranscriptFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}

	filename := buildTranscriptFilename(studentID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store transcript")
	}

	token, expiresAt, err := s.signer.Generate(studentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &TranscriptResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/transcripts/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *TranscriptService) ParseToken(token string) (studentID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, false)
}

// Open returns a handle to a stored transcript file.
func (s *TranscriptService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured
// ResultTTL when ttl <= 0).
func (s *TranscriptService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func buildTranscriptDataset(rows []models.FeedEntry) (export.Dataset, string) {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Badge":      row.BadgeName,
			"Category":   row.Category,
			"Difficulty": fmt.Sprintf("%d", row.Difficulty),
			"Awarded At": row.AwardedAt.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Badge", "Category", "Difficulty", "Awarded At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Badge Transcript for %s", rows[0].StudentName)
	return dataset, title
}

func buildTranscriptFilename(studentID, format string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	id := studentID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("transcript_%s_%s.%s", id, timestamp, format)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

type absenceLister interface {
	List(ctx context.Context, actor *models.Actor, query dto.AbsenceQuery) ([]models.AbsenceRequest, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders absence reports and hands out signed download links.
type ExportService struct {
	absences absenceLister
	storage  fileStorage
	signer   *storage.SignedURLSigner
	csv      datasetRenderer
	pdf      datasetRenderer
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(absences absenceLister, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		absences: absences,
		storage:  files,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ExportAbsences renders the requests matching query. Only admins may export.
func (s *ExportService) ExportAbsences(ctx context.Context, actor *models.Actor, query dto.AbsenceQuery, format dto.ExportFormat) (*dto.ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var renderer datasetRenderer
	switch format {
	case dto.ExportFormatCSV:
		renderer = s.csv
	case dto.ExportFormatPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	requests, err := s.absences.List(ctx, actor, query)
	if err != nil {
		return nil, err
	}
	generatedAt := s.now().UTC()
	payload, err := renderer.Render(absenceDataset(requests, generatedAt))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render absence report")
	}

	exportID := uuid.NewString()
	relPath, err := s.storage.Save(exportFilename(query, generatedAt, exportID, format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store absence report")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove unsigned export", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("absence report exported",
		zap.String("export_id", exportID),
		zap.String("format", string(format)),
		zap.Int("rows", len(requests)),
		zap.String("actor", actor.UserID),
	)
	return &dto.ExportResult{
		ExportID:  exportID,
		Format:    format,
		Rows:      len(requests),
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (*storage.DownloadToken, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	return parsed, nil
}

// Open returns a handle to a stored report.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, err
	}
	return file, nil
}

// Cleanup removes reports older than ttl, or the configured result TTL when
// ttl is not positive.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// RunCleanup sweeps expired reports every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Cleanup(0); err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}

var absenceReportHeaders = []string{"ID", "Teacher", "Day", "Period", "Class", "Subject", "Status", "Substitute", "Reported At"}

func absenceDataset(requests []models.AbsenceRequest, generatedAt time.Time) export.Dataset {
	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		substitute := ""
		if req.AssignedSubstituteName != nil {
			substitute = *req.AssignedSubstituteName
		} else if req.RequestedSubstituteName != nil {
			substitute = *req.RequestedSubstituteName + " (requested)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(req.ID, 10),
			req.AbsentTeacherName,
			req.Day,
			strconv.Itoa(req.Period),
			req.Slot.Class,
			req.Slot.Subject,
			string(req.Status),
			substitute,
			req.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{
		Title:       "Teacher Absence Report",
		Headers:     absenceReportHeaders,
		Rows:        rows,
		GeneratedAt: generatedAt,
	}
}

func exportFilename(query dto.AbsenceQuery, at time.Time, exportID string, format dto.ExportFormat) string {
	scope := "all"
	if query.Day != "" {
		scope = strings.ToLower(query.Day)
	}
	if query.Department != "" {
		scope += "_" + sanitizeFilename(strings.ToLower(query.Department))
	}
	return fmt.Sprintf("absences/%s_%s_%s.%s", scope, at.Format("20060102_150405"), exportID[:8], format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}

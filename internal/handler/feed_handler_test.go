package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

type notificationServiceMock struct {
	items      []models.Notification
	dismissErr error
	lastFilter models.NotificationFilter
	lastID     string
}

func (m *notificationServiceMock) List(ctx context.Context, actor *models.Actor, filter models.NotificationFilter) ([]models.Notification, error) {
	m.lastFilter = filter
	return m.items, nil
}

func (m *notificationServiceMock) Dismiss(ctx context.Context, actor *models.Actor, id string) error {
	m.lastID = id
	return m.dismissErr
}

func TestNotificationHandlerList(t *testing.T) {
	mockSvc := &notificationServiceMock{items: []models.Notification{{ID: "n-1"}}}
	handler := NewNotificationHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/notifications?type=ACTION&limit=5", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.NotificationAction, mockSvc.lastFilter.Type)
	assert.Equal(t, 5, mockSvc.lastFilter.Limit)
}

func TestNotificationHandlerDismiss(t *testing.T) {
	mockSvc := &notificationServiceMock{}
	handler := NewNotificationHandler(mockSvc)

	c, w := newJSONContext(http.MethodDelete, "/notifications/n-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Dismiss(c)
	require.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "n-1", mockSvc.lastID)
	assert.Empty(t, w.Body.String())

	mockSvc.dismissErr = appErrors.ErrNotFound
	c, w = newJSONContext(http.MethodDelete, "/notifications/n-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-2"}}
	handler.Dismiss(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

type downloaderMock struct {
	token    *storage.DownloadToken
	tokenErr error
	dir      string
}

func (m *downloaderMock) ParseToken(token string) (*storage.DownloadToken, error) {
	return m.token, m.tokenErr
}

func (m *downloaderMock) Open(relPath string) (*os.File, error) {
	file, err := os.Open(filepath.Join(m.dir, relPath))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	return file, nil
}

func TestExportHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "absences"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "absences", "report.csv"), []byte("id,teacher\n1,Emily Jones\n"), 0o600))

	handler := NewExportHandler(&downloaderMock{
		dir:   dir,
		token: &storage.DownloadToken{ExportID: "exp-1", Path: "absences/report.csv", ExpiresAt: time.Now().Add(time.Hour)},
	})
	c, w := newJSONContext(http.MethodGet, "/exports/signed", nil)
	c.Params = gin.Params{{Key: "token", Value: "signed"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="report.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,teacher\n1,Emily Jones\n", w.Body.String())
}

func TestExportHandlerDownloadRejects(t *testing.T) {
	handler := NewExportHandler(&downloaderMock{tokenErr: appErrors.Clone(appErrors.ErrForbidden, "invalid download link")})
	c, w := newJSONContext(http.MethodGet, "/exports/bad", nil)
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)

	handler = NewExportHandler(&downloaderMock{dir: t.TempDir(), token: &storage.DownloadToken{Path: "absences/gone.csv"}})
	c, w = newJSONContext(http.MethodGet, "/exports/gone", nil)
	handler.Download(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerProbes(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"journal": func(ctx context.Context) error { return nil },
	})

	c, w := newJSONContext(http.MethodGet, "/health", nil)
	handler.Health(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	c, w = newJSONContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newJSONContext(http.MethodGet, "/system/metrics", nil)
	handler.System(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/pkg/response"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

type exportDownloader interface {
	ParseToken(token string) (*storage.DownloadToken, error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler serves rendered reports behind signed links.
type ExportHandler struct {
	exports exportDownloader
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportDownloader) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a rendered report
// @Description The token is the signed segment of the URL returned by the export endpoint
// @Tags Absences
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token, err := h.exports.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Open(token.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	name := filepath.Base(token.Path)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Cache-Control", "private, max-age="+maxAge(token.ExpiresAt))
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}

func maxAge(expiresAt time.Time) string {
	secs := int(time.Until(expiresAt).Seconds())
	if secs < 0 {
		secs = 0
	}
	return strconv.Itoa(secs)
}

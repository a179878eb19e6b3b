package media

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/socialhub-lab/socialhub/internal/core/httpx"
)

const maxUploadBytes = 10 << 20 // 10 MB

// Service owns media upload and listing. Asset bytes live on the external
// host; only the record is kept locally.
type Service struct {
	store Store
	host  AssetHost
	now   func() time.Time
}

func NewService(store Store, host AssetHost) *Service {
	return &Service{store: store, host: host, now: time.Now}
}

func (s *Service) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/api/media", httpx.RequireUser())
	grp.POST("/upload", s.UploadHandler)
	grp.GET("", s.ListHandler)
}

func (s *Service) UploadHandler(c *gin.Context) {
	slog.Info("Media upload request received")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		slog.Warn("No file uploaded", "error", err)
		httpx.Fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		httpx.Fail(c, http.StatusBadRequest, "File too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error("Failed to open uploaded file", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Error uploading media")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		slog.Error("Failed to read uploaded file", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Error uploading media")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	publicID, url, err := s.host.Upload(c.Request.Context(), fileHeader.Filename, mimeType, data)
	if err != nil {
		slog.Error("Asset host upload failed", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Error uploading media")
		return
	}

	m := &Media{
		ID:           uuid.NewString(),
		PublicID:     publicID,
		OriginalName: fileHeader.Filename,
		MimeType:     mimeType,
		URL:          url,
		UserID:       httpx.UserID(c),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(c.Request.Context(), m); err != nil {
		slog.Error("Failed to save media record", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Error uploading media")
		return
	}

	slog.Info("Media uploaded successfully", "media_id", m.ID, "public_id", publicID)
	httpx.OK(c, http.StatusCreated, "Media uploaded successfully", gin.H{
		"mediaId": m.ID,
		"url":     m.URL,
	})
}

func (s *Service) ListHandler(c *gin.Context) {
	media, err := s.store.List(c.Request.Context())
	if err != nil {
		slog.Error("Error getting all media", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Error getting all media")
		return
	}
	if media == nil {
		media = []*Media{}
	}
	httpx.OK(c, http.StatusOK, "Media fetched successfully", media)
}

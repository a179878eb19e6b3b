package media

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/socialhub-lab/socialhub/internal/core/httpx"
)

func newMediaRouter(t *testing.T) (*gin.Engine, *MemoryStore, *MemoryAssetHost) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	host := newHost()
	svc := NewService(store, host)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r, store, host
}

func TestUploadHandler(t *testing.T) {
	r, store, host := newMediaRouter(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "cat.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(httpx.UserIDHeader, "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	var envelope httpx.Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	data := envelope.Data.(map[string]any)
	require.NotEmpty(t, data["mediaId"])
	require.NotEmpty(t, data["url"])

	m, err := store.Get(req.Context(), data["mediaId"].(string))
	require.NoError(t, err)
	require.Equal(t, "cat.jpg", m.OriginalName)
	require.True(t, host.Has(m.PublicID))
}

func TestUploadHandler_NoFile(t *testing.T) {
	r, _, _ := newMediaRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", nil)
	req.Header.Set(httpx.UserIDHeader, "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "No file uploaded")
}

func TestListHandler_RequiresIdentity(t *testing.T) {
	r, _, _ := newMediaRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

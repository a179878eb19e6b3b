package search

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/socialhub-lab/socialhub/internal/core/httpx"
)

const maxResults = 20

// Service exposes the search query endpoint over the derived index.
type Service struct {
	docs DocumentStore
}

func NewService(docs DocumentStore) *Service {
	return &Service{docs: docs}
}

func (s *Service) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/api/search", httpx.RequireUser())
	grp.GET("/posts", s.SearchHandler)
}

func (s *Service) SearchHandler(c *gin.Context) {
	query := c.Query("query")

	docs, err := s.docs.Search(c.Request.Context(), query, maxResults)
	if err != nil {
		slog.Error("Error searching posts", "error", err, "query", query)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if docs == nil {
		docs = []*Document{}
	}

	httpx.OK(c, http.StatusOK, "Search results fetched successfully", docs)
}

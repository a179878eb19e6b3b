package posts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/cache"
	"github.com/socialhub-lab/socialhub/internal/core/httpx"
	"github.com/socialhub-lab/socialhub/internal/events"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Service owns the post read/write path: persistence through the narrow
// Store contract, read-through caching, event publication after commit and
// synchronous cache invalidation before the response is sent.
type Service struct {
	store       Store
	bus         bus.Bus
	cache       cache.Store
	invalidator *Invalidator
	cacheTTL    time.Duration
	now         func() time.Time
}

func NewService(store Store, b bus.Bus, c cache.Store, cacheTTL time.Duration) *Service {
	return &Service{
		store:       store,
		bus:         b,
		cache:       c,
		invalidator: NewInvalidator(c),
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

func (s *Service) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/api/posts", httpx.RequireUser())
	grp.POST("", s.CreatePostHandler)
	grp.GET("", s.ListPostsHandler)
	grp.GET("/:id", s.GetPostHandler)
	grp.DELETE("/:id", s.DeletePostHandler)
}

type createPostRequest struct {
	Content  string   `json:"content" binding:"required,min=1,max=5000"`
	MediaIDs []string `json:"mediaIds"`
}

// listResult is the cached and returned shape for paginated reads.
type listResult struct {
	Posts       []*Post `json:"posts"`
	CurrentPage int     `json:"currentPage"`
	Limit       int     `json:"limit"`
	TotalPages  int     `json:"totalPages"`
	TotalPosts  int     `json:"totalPosts"`
}

func (s *Service) CreatePostHandler(c *gin.Context) {
	slog.Info("Creating post")
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Create post validation failed", "error", err)
		httpx.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	post := &Post{
		ID:        uuid.NewString(),
		UserID:    httpx.UserID(c),
		Content:   req.Content,
		MediaIDs:  req.MediaIDs,
		CreatedAt: s.now().UTC(),
	}
	if post.MediaIDs == nil {
		post.MediaIDs = []string{}
	}

	if err := s.store.Create(c.Request.Context(), post); err != nil {
		slog.Error("Failed to create post", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The mutation has committed: a publish or invalidation failure below
	// is surfaced as 500 but the post is not rolled back. Cache and
	// derived state catch up eventually.
	err := s.bus.Publish(c.Request.Context(), events.PostCreated, events.PostCreatedPayload{
		PostID:    post.ID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		slog.Error("Failed to publish post.created", "error", err, "post_id", post.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := s.invalidator.InvalidatePost(c.Request.Context(), post.ID); err != nil {
		slog.Error("Failed to invalidate post cache", "error", err, "post_id", post.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("Post created successfully", "post_id", post.ID)
	httpx.OK(c, http.StatusCreated, "Post created successfully", post)
}

func (s *Service) GetPostHandler(c *gin.Context) {
	id := c.Param("id")
	key := pointKey(id)

	if cached, err := s.cache.Get(c.Request.Context(), key); err == nil {
		httpx.OK(c, http.StatusOK, "Post fetched successfully", json.RawMessage(cached))
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		// Cache store down: degrade to a direct fetch.
		slog.Warn("Cache read failed, falling through to store", "error", err, "key", key)
	}

	post, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Fail(c, http.StatusNotFound, "Post not found")
			return
		}
		slog.Error("Failed to fetch post", "error", err, "post_id", id)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.fillCache(c, key, post)
	httpx.OK(c, http.StatusOK, "Post fetched successfully", post)
}

func (s *Service) ListPostsHandler(c *gin.Context) {
	page := queryInt(c, "page", defaultPage)
	limit := queryInt(c, "limit", defaultLimit)
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}

	key := listKey(page, limit)
	if cached, err := s.cache.Get(c.Request.Context(), key); err == nil {
		httpx.OK(c, http.StatusOK, "Posts fetched successfully", json.RawMessage(cached))
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("Cache read failed, falling through to store", "error", err, "key", key)
	}

	list, total, err := s.store.List(c.Request.Context(), (page-1)*limit, limit)
	if err != nil {
		slog.Error("Failed to list posts", "error", err)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	result := &listResult{
		Posts:       list,
		CurrentPage: page,
		Limit:       limit,
		TotalPages:  (total + limit - 1) / limit,
		TotalPosts:  total,
	}

	s.fillCache(c, key, result)
	httpx.OK(c, http.StatusOK, "Posts fetched successfully", result)
}

func (s *Service) DeletePostHandler(c *gin.Context) {
	id := c.Param("id")

	post, err := s.store.Delete(c.Request.Context(), id, httpx.UserID(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Fail(c, http.StatusNotFound, "Post not found")
			return
		}
		slog.Error("Failed to delete post", "error", err, "post_id", id)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	err = s.bus.Publish(c.Request.Context(), events.PostDeleted, events.PostDeletedPayload{
		PostID:   post.ID,
		UserID:   post.UserID,
		MediaIDs: post.MediaIDs,
	})
	if err != nil {
		slog.Error("Failed to publish post.deleted", "error", err, "post_id", post.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := s.invalidator.InvalidatePost(c.Request.Context(), post.ID); err != nil {
		slog.Error("Failed to invalidate post cache", "error", err, "post_id", post.ID)
		httpx.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("Post deleted successfully", "post_id", post.ID)
	httpx.OK(c, http.StatusOK, "Post deleted successfully", nil)
}

// fillCache is best-effort: a write failure only costs the next reader a
// store round-trip.
func (s *Service) fillCache(c *gin.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Failed to marshal cache entry", "error", err, "key", key)
		return
	}
	if err := s.cache.Set(c.Request.Context(), key, string(raw), s.cacheTTL); err != nil {
		slog.Warn("Cache write failed", "error", err, "key", key)
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

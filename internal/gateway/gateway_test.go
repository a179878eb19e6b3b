package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/socialhub-lab/socialhub/internal/cache"
	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/core/httpx"
	"github.com/socialhub-lab/socialhub/internal/identity"
)

// echoUpstream records how many requests reached it and answers with the
// path and identity header it received, so tests can observe what the
// gateway actually forwarded.
type echoUpstream struct {
	srv  *httptest.Server
	hits atomic.Int64
}

type echoReply struct {
	Path   string `json:"path"`
	UserID string `json:"userId"`
}

func newEchoUpstream(t *testing.T) *echoUpstream {
	u := &echoUpstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoReply{
			Path:   r.URL.Path,
			UserID: r.Header.Get(httpx.UserIDHeader),
		})
	}))
	t.Cleanup(u.srv.Close)
	return u
}

type gatewayFixture struct {
	router   *gin.Engine
	tokens   *identity.TokenManager
	store    *cache.MemoryStore
	identity *echoUpstream
	posts    *echoUpstream
}

func newGatewayFixture(t *testing.T, cfg config.GatewayConfig) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &gatewayFixture{
		tokens:   identity.NewTokenManager("test-secret", 15*time.Minute),
		store:    cache.NewMemoryStore(),
		identity: newEchoUpstream(t),
		posts:    newEchoUpstream(t),
	}
	cfg.IdentityURL = f.identity.srv.URL
	cfg.PostsURL = f.posts.srv.URL
	cfg.MediaURL = f.posts.srv.URL
	cfg.SearchURL = f.posts.srv.URL
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
	}

	g, err := New(DefaultRules(cfg), f.tokens, f.store, cfg)
	require.NoError(t, err)

	f.router = gin.New()
	g.Register(f.router)
	return f
}

// closeNotifyRecorder adds the http.CloseNotifier method the reverse
// proxy expects but httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func (f *gatewayFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(&closeNotifyRecorder{w}, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) httpx.Response {
	t.Helper()
	var resp httpx.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGatewayUnknownRoute(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/unknown/thing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "Route not found", resp.Message)
}

func TestGatewayProxiesWithRewrite(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})

	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var reply echoReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	require.Equal(t, "/api/auth/login", reply.Path)
	require.EqualValues(t, 1, f.identity.hits.Load())
}

func TestGatewayRequiresTokenForProtectedRoutes(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/posts", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Unauthorized", decodeEnvelope(t, w).Message)

	req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w = f.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid token", decodeEnvelope(t, w).Message)

	// Neither rejection reached the upstream.
	require.EqualValues(t, 0, f.posts.hits.Load())
}

func TestGatewayInjectsVerifiedIdentity(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})

	token, err := f.tokens.Issue("user-42", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// A forged identity header must never survive admission.
	req.Header.Set(httpx.UserIDHeader, "user-999")

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var reply echoReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	require.Equal(t, "user-42", reply.UserID)
}

func TestGatewayStripsIdentityOnOpenRoutes(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.Header.Set(httpx.UserIDHeader, "user-999")

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var reply echoReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	require.Empty(t, reply.UserID)
}

func TestGatewayGlobalRateLimit(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{RateLimit: 3})

	for i := 0; i < 3; i++ {
		w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}
	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "Too many requests from this IP, please try again after 15 minutes",
		decodeEnvelope(t, w).Message)
	require.EqualValues(t, 3, f.identity.hits.Load())
}

func TestGatewayAuthRouteSecondaryLimit(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{RateLimit: 100, AuthRateLimit: 2})

	token, err := f.tokens.Issue("user-42", "alice")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// The tighter limit only covers the auth routes; the rest of the
	// gateway keeps serving.
	req := httptest.NewRequest(http.MethodGet, "/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayUpstreamFailure(t *testing.T) {
	f := newGatewayFixture(t, config.GatewayConfig{})
	// Make the identity upstream unreachable.
	f.identity.srv.Close()

	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeEnvelope(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "Internal server error", resp.Message)
}

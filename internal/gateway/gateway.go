// Package gateway implements the request admission pipeline in front of
// every domain service: distributed rate limiting, stateless bearer-token
// verification and routed proxying with identity propagation. Admission
// failures (429, 401) are terminal here and never reach an upstream.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/socialhub-lab/socialhub/internal/cache"
	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/core/httpx"
	"github.com/socialhub-lab/socialhub/internal/identity"
)

// TokenVerifier checks a bearer token statelessly and returns its claims.
// Implemented by identity.TokenManager.
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// Gateway runs every inbound request through
// RATE_LIMIT_CHECK -> AUTH_CHECK -> PROXY_DISPATCH.
type Gateway struct {
	table         *Table
	verifier      TokenVerifier
	ipLimiter     *Limiter
	routeLimiters map[string]*Limiter
}

func New(rules []Rule, verifier TokenVerifier, store cache.Store, cfg config.GatewayConfig) (*Gateway, error) {
	transport := &http.Transport{ResponseHeaderTimeout: cfg.Timeout()}
	table, err := NewTable(rules, transport, proxyError)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		table:         table,
		verifier:      verifier,
		ipLimiter:     NewLimiter(store, "ratelimit:ip", cfg.RateLimit, cfg.Window()),
		routeLimiters: make(map[string]*Limiter),
	}
	for _, rule := range table.rules {
		if rule.RateLimit > 0 {
			g.routeLimiters[rule.PathPrefix] = NewLimiter(
				store, "ratelimit:route:"+rule.PathPrefix, rule.RateLimit, cfg.Window())
		}
	}
	return g, nil
}

// Register mounts the admission pipeline: the gateway-wide IP limit runs
// as middleware and every unmatched route falls through to dispatch.
func (g *Gateway) Register(r *gin.Engine) {
	r.Use(g.RateLimitMiddleware())
	r.NoRoute(g.Dispatch)
}

// RateLimitMiddleware enforces the gateway-wide per-IP limit. Rejected
// requests are never forwarded to any upstream.
func (g *Gateway) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.ipLimiter.Allow(c.Request.Context(), c.ClientIP()) {
			slog.Warn("Too many requests", "ip", c.ClientIP())
			httpx.Fail(c, http.StatusTooManyRequests,
				"Too many requests from this IP, please try again after 15 minutes")
			return
		}
		c.Next()
	}
}

// Dispatch resolves the route rule, applies the route's secondary limit
// and auth requirement, then hands the request to the rule's proxy.
func (g *Gateway) Dispatch(c *gin.Context) {
	rule, ok := g.table.Resolve(c.Request.URL.Path)
	if !ok {
		slog.Warn("Route not found", "method", c.Request.Method, "path", c.Request.URL.Path)
		httpx.Fail(c, http.StatusNotFound, "Route not found")
		return
	}

	if limiter, ok := g.routeLimiters[rule.PathPrefix]; ok {
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			slog.Warn("Too many requests on sensitive route", "ip", c.ClientIP(), "route", rule.PathPrefix)
			httpx.Fail(c, http.StatusTooManyRequests,
				"Too many requests from this IP, please try again after 15 minutes")
			return
		}
	}

	// Never trust a client-supplied identity header: it is stripped
	// unconditionally and only re-set from verified claims.
	c.Request.Header.Del(httpx.UserIDHeader)

	if rule.RequiresAuth {
		token, ok := bearerToken(c.Request)
		if !ok {
			slog.Warn("Unauthorized", "path", c.Request.URL.Path)
			httpx.Fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := g.verifier.Verify(token)
		if err != nil {
			slog.Warn("Invalid token", "path", c.Request.URL.Path)
			httpx.Fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		c.Request.Header.Set(httpx.UserIDHeader, claims.UserID)
	}

	rule.proxy.ServeHTTP(c.Writer, c.Request)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

// proxyError maps upstream connection and timeout failures to a generic
// internal error; there is no automatic retry.
func proxyError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Proxy error", "error", err, "path", r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(httpx.Response{
		Success: false,
		Message: "Internal server error",
	})
}

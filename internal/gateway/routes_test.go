package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialhub-lab/socialhub/internal/core/config"
)

func testRules() []Rule {
	return DefaultRules(config.GatewayConfig{
		IdentityURL:   "http://localhost:3001",
		PostsURL:      "http://localhost:3002",
		MediaURL:      "http://localhost:3003",
		SearchURL:     "http://localhost:3004",
		AuthRateLimit: 50,
	})
}

func TestResolveLongestPrefix(t *testing.T) {
	rules := append(testRules(), Rule{
		PathPrefix: "/v1", Upstream: "http://localhost:3999",
		RewriteFrom: "/v1", RewriteTo: "/api",
	})
	table, err := NewTable(rules, http.DefaultTransport, nil)
	require.NoError(t, err)

	rule, ok := table.Resolve("/v1/auth/login")
	require.True(t, ok)
	require.Equal(t, "/v1/auth", rule.PathPrefix)

	rule, ok = table.Resolve("/v1/posts")
	require.True(t, ok)
	require.Equal(t, "/v1/posts", rule.PathPrefix)

	// The catch-all rule only wins when no longer prefix matches.
	rule, ok = table.Resolve("/v1/feed/latest")
	require.True(t, ok)
	require.Equal(t, "/v1", rule.PathPrefix)

	// A prefix must match on a path boundary.
	_, ok = table.Resolve("/v1/authx/login")
	require.True(t, ok)
	rule, _ = table.Resolve("/v1/authx/login")
	require.Equal(t, "/v1", rule.PathPrefix)

	_, ok = table.Resolve("/healthz")
	require.False(t, ok)
}

func TestRewritePath(t *testing.T) {
	rule := Rule{PathPrefix: "/v1/posts", RewriteFrom: "/v1", RewriteTo: "/api"}
	require.Equal(t, "/api/posts", rule.RewritePath("/v1/posts"))
	require.Equal(t, "/api/posts/abc123", rule.RewritePath("/v1/posts/abc123"))
	require.Equal(t, "/other", rule.RewritePath("/other"))
}

func TestNewTableRejectsInvalidRules(t *testing.T) {
	_, err := NewTable(nil, http.DefaultTransport, nil)
	require.Error(t, err)

	_, err = NewTable([]Rule{{PathPrefix: "auth", Upstream: "http://localhost:3001"}}, http.DefaultTransport, nil)
	require.Error(t, err)

	_, err = NewTable([]Rule{{PathPrefix: "/v1/auth", Upstream: "not a url"}}, http.DefaultTransport, nil)
	require.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	writeRoute := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	writeRoute("auth.yaml", `path_prefix: /v1/auth
upstream: http://localhost:3001
requires_auth: false
rate_limit: 50
`)
	writeRoute("posts.yaml", `path_prefix: /v1/posts
upstream: http://localhost:3002
requires_auth: true
rewrite_from: /v1
rewrite_to: /internal
`)
	writeRoute("notes.txt", "ignored")

	rules, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	byPrefix := map[string]Rule{}
	for _, r := range rules {
		byPrefix[r.PathPrefix] = r
	}

	auth := byPrefix["/v1/auth"]
	require.False(t, auth.RequiresAuth)
	require.Equal(t, 50, auth.RateLimit)
	// Rewrite defaults apply when the file omits them.
	require.Equal(t, "/api", auth.RewriteTo)

	posts := byPrefix["/v1/posts"]
	require.True(t, posts.RequiresAuth)
	require.Equal(t, "/internal", posts.RewriteTo)
}

func TestLoadRulesEmptyDir(t *testing.T) {
	_, err := LoadRules(t.TempDir())
	require.Error(t, err)
}

package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/socialhub-lab/socialhub/internal/core/config"
)

// Rule is one static routing entry: a path prefix, the upstream it maps
// to, whether admission requires a verified token, the path rewrite and an
// optional tighter rate limit for sensitive routes.
type Rule struct {
	PathPrefix   string
	Upstream     string
	RequiresAuth bool
	RewriteFrom  string
	RewriteTo    string
	RateLimit    int

	upstream *url.URL
	proxy    *httputil.ReverseProxy
}

// RewritePath swaps the public prefix for the internal API prefix
// (by default /v1 -> /api) before the request is forwarded.
func (r *Rule) RewritePath(path string) string {
	if r.RewriteFrom != "" && strings.HasPrefix(path, r.RewriteFrom) {
		return r.RewriteTo + strings.TrimPrefix(path, r.RewriteFrom)
	}
	return path
}

// Table is the static routing table, evaluated by longest-prefix match.
type Table struct {
	rules []*Rule
}

// NewTable validates the rules, builds one reverse proxy per upstream and
// orders rules longest-prefix-first.
func NewTable(rules []Rule, transport http.RoundTripper, onError func(w http.ResponseWriter, r *http.Request, err error)) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("gateway: routing table is empty")
	}

	t := &Table{}
	for i := range rules {
		rule := rules[i]
		if rule.PathPrefix == "" || !strings.HasPrefix(rule.PathPrefix, "/") {
			return nil, fmt.Errorf("gateway: invalid path prefix %q", rule.PathPrefix)
		}
		target, err := url.Parse(rule.Upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("gateway: invalid upstream %q for %s", rule.Upstream, rule.PathPrefix)
		}
		rule.upstream = target
		rule.proxy = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.Out.URL.Path = rule.RewritePath(pr.In.URL.Path)
				pr.Out.Host = target.Host
			},
			Transport:    transport,
			ErrorHandler: onError,
		}
		t.rules = append(t.rules, &rule)
	}

	sort.SliceStable(t.rules, func(i, j int) bool {
		return len(t.rules[i].PathPrefix) > len(t.rules[j].PathPrefix)
	})
	return t, nil
}

// Resolve returns the longest-prefix rule matching path.
func (t *Table) Resolve(path string) (*Rule, bool) {
	for _, rule := range t.rules {
		if path == rule.PathPrefix || strings.HasPrefix(path, rule.PathPrefix+"/") {
			return rule, true
		}
	}
	return nil, false
}

// DefaultRules is the built-in routing table: identity is reachable
// unauthenticated (it is where tokens come from) and carries the tighter
// secondary limit; everything else requires a verified token.
func DefaultRules(cfg config.GatewayConfig) []Rule {
	return []Rule{
		{PathPrefix: "/v1/auth", Upstream: cfg.IdentityURL, RequiresAuth: false, RewriteFrom: "/v1", RewriteTo: "/api", RateLimit: cfg.AuthRateLimit},
		{PathPrefix: "/v1/posts", Upstream: cfg.PostsURL, RequiresAuth: true, RewriteFrom: "/v1", RewriteTo: "/api"},
		{PathPrefix: "/v1/media", Upstream: cfg.MediaURL, RequiresAuth: true, RewriteFrom: "/v1", RewriteTo: "/api"},
		{PathPrefix: "/v1/search", Upstream: cfg.SearchURL, RequiresAuth: true, RewriteFrom: "/v1", RewriteTo: "/api"},
	}
}

// rawRoute is the on-disk YAML shape, one route per file.
type rawRoute struct {
	PathPrefix   string `yaml:"path_prefix"`
	Upstream     string `yaml:"upstream"`
	RequiresAuth bool   `yaml:"requires_auth"`
	RewriteFrom  string `yaml:"rewrite_from"`
	RewriteTo    string `yaml:"rewrite_to"`
	RateLimit    int    `yaml:"rate_limit"`
}

// LoadRules reads *.yaml route files from dir. Each file holds exactly
// one route. Routes are loaded once at startup; there is no hot reload.
func LoadRules(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("gateway: reading routes dir: %w", err)
	}

	var rules []Rule
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("gateway: reading route file %s: %w", path, err)
		}
		var raw rawRoute
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("gateway: parsing route file %s: %w", path, err)
		}
		if raw.RewriteFrom == "" {
			raw.RewriteFrom = "/v1"
			raw.RewriteTo = "/api"
		}
		rules = append(rules, Rule{
			PathPrefix:   raw.PathPrefix,
			Upstream:     raw.Upstream,
			RequiresAuth: raw.RequiresAuth,
			RewriteFrom:  raw.RewriteFrom,
			RewriteTo:    raw.RewriteTo,
			RateLimit:    raw.RateLimit,
		})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("gateway: no route files found in %q", dir)
	}
	return rules, nil
}

package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/socialhub-lab/socialhub/internal/cache"
)

// Limiter is a fixed-window counter in the shared cache store, so every
// gateway instance observes the same count per identity. The window is
// anchored at the identity's first request: the atomic increment that
// creates the key also arms its TTL.
//
// When the shared store is unreachable the limiter degrades to a local
// per-identity token bucket instead of failing closed; counts are then
// per-instance, which is the accepted trade for staying up.
type Limiter struct {
	store  cache.Store
	prefix string
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewLimiter(store cache.Store, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		prefix: prefix,
		limit:  limit,
		window: window,
		local:  make(map[string]*rate.Limiter),
	}
}

// Allow counts one request for identity and reports whether it is within
// the window's limit. Exactly the requests beyond the limit are rejected:
// the (N+1)-th request in a window of limit N is the first refusal.
func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	count, err := l.store.IncrWithTTL(ctx, l.prefix+":"+identity, l.window)
	if err != nil {
		slog.Warn("Rate-limit store unreachable, using local fallback", "error", err)
		return l.localAllow(identity)
	}
	return count <= int64(l.limit)
}

// maxLocalLimiters bounds the fallback map during a prolonged store
// outage; past the cap an arbitrary identity is evicted and restarts
// with a fresh bucket.
const maxLocalLimiters = 4096

func (l *Limiter) localAllow(identity string) bool {
	l.mu.Lock()
	lim, ok := l.local[identity]
	if !ok {
		if len(l.local) >= maxLocalLimiters {
			for k := range l.local {
				delete(l.local, k)
				break
			}
		}
		lim = rate.NewLimiter(rate.Limit(float64(l.limit)/l.window.Seconds()), l.limit)
		l.local[identity] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

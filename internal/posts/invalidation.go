package posts

import (
	"context"
	"fmt"

	"github.com/socialhub-lab/socialhub/internal/cache"
)

// Cache key families owned by the post service.
const listKeyPattern = "posts:*"

func pointKey(postID string) string { return "post:" + postID }

func listKey(page, limit int) string { return fmt.Sprintf("posts:%d:%d", page, limit) }

// Invalidator evicts post cache entries after a mutation. Eviction runs
// synchronously before the HTTP response, giving read-after-write
// consistency for this service's own readers.
type Invalidator struct {
	store cache.Store
}

func NewInvalidator(store cache.Store) *Invalidator {
	return &Invalidator{store: store}
}

// InvalidatePost deletes the point-lookup key for postID and every
// paginated list key. All pages are evicted, not just the affected ones:
// a mutation shifts page boundaries unpredictably, so narrowing the sweep
// would change observable staleness.
func (i *Invalidator) InvalidatePost(ctx context.Context, postID string) error {
	if err := i.store.Delete(ctx, pointKey(postID)); err != nil {
		return err
	}
	return i.store.DeleteByPattern(ctx, listKeyPattern)
}

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/events"
)

// CleanupConsumer removes hosted assets and their local records when the
// owning post is deleted. It tolerates empty media lists, records that
// were already removed, and duplicate deliveries.
type CleanupConsumer struct {
	store Store
	host  AssetHost
}

func NewCleanupConsumer(store Store, host AssetHost) *CleanupConsumer {
	return &CleanupConsumer{store: store, host: host}
}

func (c *CleanupConsumer) Bind(ctx context.Context, b bus.Bus) error {
	return b.Subscribe(ctx, events.PostDeleted, c.HandlePostDeleted)
}

func (c *CleanupConsumer) HandlePostDeleted(ctx context.Context, d bus.Delivery) error {
	var payload events.PostDeletedPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return fmt.Errorf("decode post.deleted: %w", err)
	}

	for _, mediaID := range payload.MediaIDs {
		m, err := c.store.Get(ctx, mediaID)
		if errors.Is(err, ErrNotFound) {
			// Already cleaned up on a previous delivery.
			continue
		}
		if err != nil {
			return fmt.Errorf("look up media %s: %w", mediaID, err)
		}

		if err := c.host.Delete(ctx, m.PublicID); err != nil {
			return fmt.Errorf("delete asset %s: %w", m.PublicID, err)
		}
		if err := c.store.Delete(ctx, m.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete media record %s: %w", m.ID, err)
		}
		slog.Info("Deleted media file for post", "post_id", payload.PostID, "media_id", m.ID)
	}
	return nil
}

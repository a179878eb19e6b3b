package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/events"
)

// Consumer maintains the derived search index from post events. Handlers
// are idempotent and tolerate out-of-order delivery across routing keys;
// failures are logged by the bus delivery loop and the message is acked
// regardless.
type Consumer struct {
	docs DocumentStore
}

func NewConsumer(docs DocumentStore) *Consumer {
	return &Consumer{docs: docs}
}

// Bind subscribes the consumer's handlers on their routing keys. Each
// subscription gets its own exclusive queue.
func (c *Consumer) Bind(ctx context.Context, b bus.Bus) error {
	if err := b.Subscribe(ctx, events.PostCreated, c.HandlePostCreated); err != nil {
		return err
	}
	return b.Subscribe(ctx, events.PostDeleted, c.HandlePostDeleted)
}

func (c *Consumer) HandlePostCreated(ctx context.Context, d bus.Delivery) error {
	var payload events.PostCreatedPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return fmt.Errorf("decode post.created: %w", err)
	}

	err := c.docs.Insert(ctx, &Document{
		PostID:    payload.PostID,
		UserID:    payload.UserID,
		Content:   payload.Content,
		CreatedAt: payload.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("index post %s: %w", payload.PostID, err)
	}

	slog.Info("Search document indexed", "post_id", payload.PostID, "redelivered", d.Redelivered)
	return nil
}

func (c *Consumer) HandlePostDeleted(ctx context.Context, d bus.Delivery) error {
	var payload events.PostDeletedPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return fmt.Errorf("decode post.deleted: %w", err)
	}

	// Removing an absent document is a no-op, not an error.
	if err := c.docs.DeleteByPostID(ctx, payload.PostID); err != nil {
		return fmt.Errorf("remove post %s from index: %w", payload.PostID, err)
	}

	slog.Info("Search document removed", "post_id", payload.PostID, "redelivered", d.Redelivered)
	return nil
}

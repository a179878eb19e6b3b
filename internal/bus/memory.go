package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-binary development
// runs. Publish delivers synchronously to every matching subscription in
// registration order, which preserves the per-queue ordering guarantee of
// the real broker while keeping tests deterministic. Handler errors follow
// the same log-and-continue contract as the AMQP client.
type MemoryBus struct {
	mu   sync.Mutex
	subs []*memorySubscription
}

type memorySubscription struct {
	ctx     context.Context
	pattern string
	handler Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: marshal %q payload: %w", routingKey, err)
	}

	b.mu.Lock()
	subs := make([]*memorySubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if !MatchTopic(sub.pattern, routingKey) {
			continue
		}
		d := Delivery{RoutingKey: routingKey, Body: body}
		if err := sub.handler(sub.ctx, d); err != nil {
			slog.Error("Event handler failed, acking anyway",
				"pattern", sub.pattern,
				"routing_key", routingKey,
				"error", err)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, pattern string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, &memorySubscription{ctx: ctx, pattern: pattern, handler: h})
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	return nil
}

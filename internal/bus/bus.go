// Package bus provides the topic-routed message bus client used for
// cross-service event propagation. Delivery is at-least-once: a message is
// acknowledged only after its handler returns, so a crash between delivery
// and ack causes redelivery. Consumers must be idempotent and tolerate
// duplicates; the bus does not deduplicate.
package bus

import "context"

// Delivery is one message handed to a subscription handler.
type Delivery struct {
	RoutingKey  string
	Body        []byte
	Redelivered bool
}

// Handler processes a single delivery. A non-nil error is logged by the
// delivery loop and the message is acknowledged regardless: there is no
// retry and no dead-letter queue. A permanently failing handler drops
// events, which is the documented best-effort contract of this bus.
type Handler func(ctx context.Context, d Delivery) error

// Bus is the publish/subscribe contract shared by the AMQP client and the
// in-memory bus.
type Bus interface {
	// Publish serializes payload to JSON and sends it tagged with
	// routingKey. It returns once the broker has accepted the message and
	// does not wait for any consumer.
	Publish(ctx context.Context, routingKey string, payload any) error

	// Subscribe binds a fresh exclusive queue to pattern and delivers
	// matching messages to h one at a time, in routing-key order per
	// queue. Each subscribing instance gets its own queue (broadcast
	// semantics, not competing consumers).
	Subscribe(ctx context.Context, pattern string, h Handler) error

	Close() error
}

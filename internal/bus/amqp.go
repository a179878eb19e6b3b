package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned by Publish and Subscribe before Connect has
// succeeded or after Close.
var ErrNotConnected = errors.New("bus: not connected")

const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// Client is an AMQP-backed Bus. It owns a single shared connection and one
// logical topic exchange with an explicit Connect/Close lifecycle. On
// connection loss it reconnects and re-establishes exchange, queues and
// bindings; unacked in-flight messages may be redelivered to the new queue
// instance, so duplicates are possible downstream.
type Client struct {
	url      string
	exchange string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	subs   []*subscription
	closed bool
}

type subscription struct {
	ctx     context.Context
	pattern string
	handler Handler
}

// NewClient builds an unconnected client for the given broker URL and
// exchange name.
func NewClient(url, exchange string) *Client {
	return &Client{url: url, exchange: exchange}
}

// Connect dials the broker, opens a channel and declares the non-durable
// topic exchange. It also arms the reconnect watcher.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	if err := c.dialLocked(); err != nil {
		return err
	}
	slog.Info("Connected to message bus", "exchange", c.exchange)
	return nil
}

// dialLocked establishes connection, channel and exchange, restarts any
// registered subscriptions and arms the close watcher. Caller holds c.mu.
func (c *Client) dialLocked() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("bus: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("bus: open channel: %w", err)
	}
	// Non-durable by design: events are acceptable loss on broker restart.
	if err := ch.ExchangeDeclare(c.exchange, "topic", false, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("bus: declare exchange %q: %w", c.exchange, err)
	}

	c.conn = conn
	c.ch = ch

	for _, sub := range c.subs {
		if err := c.startSubscriptionLocked(sub); err != nil {
			conn.Close()
			return err
		}
	}

	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch blocks until the connection drops, then reconnects with backoff.
func (c *Client) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		// Clean shutdown via Close.
		return
	}
	slog.Warn("Bus connection lost, reconnecting", "error", amqpErr)

	delay := reconnectInitialDelay
	for {
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		err := c.dialLocked()
		c.mu.Unlock()

		if err == nil {
			slog.Info("Bus reconnected", "exchange", c.exchange)
			return
		}
		slog.Warn("Bus reconnect failed", "error", err, "retry_in", delay)
		if delay *= 2; delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// Publish serializes payload to JSON and sends it tagged with routingKey.
// It returns once the broker accepts the message; consumer processing is
// never awaited.
func (c *Client) Publish(ctx context.Context, routingKey string, payload any) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: marshal %q payload: %w", routingKey, err)
	}

	err = ch.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("bus: publish %q: %w", routingKey, err)
	}
	return nil
}

// Subscribe registers a handler for pattern on a fresh exclusive queue.
// The subscription survives reconnects: a new queue is declared and bound
// each time the connection is re-established.
func (c *Client) Subscribe(ctx context.Context, pattern string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return ErrNotConnected
	}
	sub := &subscription{ctx: ctx, pattern: pattern, handler: h}
	if err := c.startSubscriptionLocked(sub); err != nil {
		return err
	}
	c.subs = append(c.subs, sub)
	return nil
}

func (c *Client) startSubscriptionLocked(sub *subscription) error {
	// Server-named, exclusive, auto-deleted: each instance gets its own
	// queue, giving broadcast rather than competing-consumer semantics.
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("bus: declare queue for %q: %w", sub.pattern, err)
	}
	if err := c.ch.QueueBind(q.Name, sub.pattern, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bus: bind %q to %q: %w", q.Name, sub.pattern, err)
	}
	deliveries, err := c.ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("bus: consume %q: %w", q.Name, err)
	}

	go deliverLoop(sub.ctx, sub.pattern, sub.handler, deliveries)
	slog.Info("Subscribed", "pattern", sub.pattern, "queue", q.Name)
	return nil
}

// deliverLoop feeds messages to the handler one at a time and acks each
// after the handler returns. Handler errors are logged and the message is
// acknowledged anyway: delivery is best-effort with no retry and no
// dead-letter path.
func deliverLoop(ctx context.Context, pattern string, h Handler, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		err := h(ctx, Delivery{
			RoutingKey:  d.RoutingKey,
			Body:        d.Body,
			Redelivered: d.Redelivered,
		})
		if err != nil {
			slog.Error("Event handler failed, acking anyway",
				"pattern", pattern,
				"routing_key", d.RoutingKey,
				"error", err)
		}
		if ackErr := d.Ack(false); ackErr != nil {
			slog.Warn("Failed to ack delivery", "routing_key", d.RoutingKey, "error", ackErr)
		}
	}
}

// Ping reports whether the broker connection is currently up. Used by the
// HTTP health endpoint.
func (c *Client) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil || c.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

// Close tears down the connection. Registered subscriptions are dropped;
// the client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.subs = nil
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

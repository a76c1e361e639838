// Package broadcast publishes stock-change notifications over Redis
// pub/sub so dashboards and other replicas can refresh without polling.
// Delivery is best-effort: a failed publish is logged and dropped, never
// surfaced to the transaction that caused it.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const stockChannel = "inventory.changed"

// Event is the published payload.
type Event struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Broadcaster publishes and subscribes on the stock channel. A nil client
// disables it; every method becomes a no-op.
type Broadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// New constructs a Broadcaster.
func New(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, logger: logger}
}

// StockChanged publishes one event.
func (b *Broadcaster) StockChanged(ctx context.Context, reason string) {
	if b == nil || b.client == nil {
		return
	}
	payload, err := json.Marshal(Event{Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, stockChannel, payload).Err(); err != nil && b.logger != nil {
		b.logger.Warn("broadcast publish failed", slog.Any("error", err))
	}
}

// Listen subscribes to the stock channel and invokes fn per event until
// ctx is cancelled.
func (b *Broadcaster) Listen(ctx context.Context, fn func(Event)) error {
	if b == nil || b.client == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := b.client.Subscribe(ctx, stockChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if b.logger != nil {
					b.logger.Warn("broadcast decode failed", slog.Any("error", err))
				}
				continue
			}
			fn(ev)
		}
	}
}

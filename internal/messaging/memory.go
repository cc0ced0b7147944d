package messaging

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MemoryBus is an in-process Client for single-binary deployments, where the
// API, the feed and the receipt worker share one process.
type MemoryBus struct {
	topic  string
	ch     chan Message
	offset atomic.Int64
	logger *zap.Logger
}

// NewMemoryBus returns a bus holding up to buffer unconsumed messages.
func NewMemoryBus(topic string, buffer int, logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &MemoryBus{topic: topic, ch: make(chan Message, buffer), logger: logger.Named("bus")}
}

// Publish enqueues the message, waiting for room until ctx is done.
func (b *MemoryBus) Publish(ctx context.Context, eventType string, key []byte, value []byte) error {
	msg := Message{
		Topic:   b.topic,
		Key:     append([]byte(nil), key...),
		Value:   append([]byte(nil), value...),
		Headers: headers(eventType),
		Offset:  b.offset.Add(1) - 1,
		Time:    time.Now(),
	}
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume hands each message to exactly one consumer. Messages whose handler
// fails are logged and dropped.
func (b *MemoryBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.ch:
			if err := handler(ctx, msg); err != nil {
				b.logger.Error("message handler failed",
					zap.Error(err),
					zap.Int64("offset", msg.Offset),
					zap.String("event", msg.EventType()),
				)
			}
		}
	}
}

func (b *MemoryBus) Topic() string { return b.topic }

// Pending reports how many messages wait for a consumer.
func (b *MemoryBus) Pending() int { return len(b.ch) }

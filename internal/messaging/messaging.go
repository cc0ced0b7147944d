package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
)

// Headers set on every published message.
const (
	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"

	contentTypeJSON = "application/json"
)

// Message is one event read from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// EventType returns the event name the message was published under.
func (m Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// Handler processes an inbound message. A non-nil error leaves the message
// unacknowledged.
type Handler func(context.Context, Message) error

// Client publishes order and receipt events and consumes them back.
type Client interface {
	Publish(ctx context.Context, eventType string, key []byte, value []byte) error
	// Consume blocks, feeding messages to handler until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient picks the bus implementation named by cfg.Messaging.Driver.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	case "memory":
		logger.Info("using in-process message bus", zap.String("topic", topic))
		return NewMemoryBus(topic, 256, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func headers(eventType string) map[string]string {
	return map[string]string{
		HeaderEventType:   eventType,
		HeaderContentType: contentTypeJSON,
	}
}

// noopClient drops everything it is given.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, string, []byte, []byte) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

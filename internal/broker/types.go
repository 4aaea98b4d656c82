package broker

import (
	"context"
	"time"

	"logscrub/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, env models.Envelope) error
	// PublishRaw writes an already-serialized payload without touching
	// its bytes. Dead-letter routing uses this to forward the original
	// message verbatim, with failure context in the headers.
	PublishRaw(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	ConsumeRaw(ctx context.Context, topic string, handler RawHandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, env models.Envelope) error

// Delivery is an undecoded message as it arrived on the wire. The
// dead-letter archiver consumes these: payloads on a DLQ topic are not
// guaranteed to parse as envelopes.
type Delivery struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

type RawHandlerFunc func(ctx context.Context, d Delivery) error

package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Broker moves raw messages over named channels
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher publishes typed events to a fixed destination
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload json.RawMessage) error
}

// Message is the envelope written to the channel
type Message struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

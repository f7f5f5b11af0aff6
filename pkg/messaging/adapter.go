package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChannelPublisher binds a broker to one channel and wraps each event in a
// Message envelope.
type ChannelPublisher struct {
	broker  Broker
	channel string
	now     func() time.Time
}

func NewChannelPublisher(broker Broker, channel string) *ChannelPublisher {
	return &ChannelPublisher{
		broker:  broker,
		channel: channel,
		now:     time.Now,
	}
}

func (p *ChannelPublisher) Channel() string {
	return p.channel
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventType string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(Message{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.broker.Publish(ctx, p.channel, data)
}

// Decode parses one envelope received from a channel
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// AnalyticsTopic is the in-process topic every analytics event goes to.
const AnalyticsTopic = "analytics"

// Publisher is implemented by the in-process bus and the NATS publisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// ChannelBus publishes events to a watermill publisher (gochannel in practice).
type ChannelBus struct {
	publisher message.Publisher
	topic     string
}

func NewChannelBus(publisher message.Publisher) *ChannelBus {
	return &ChannelBus{publisher: publisher, topic: AnalyticsTopic}
}

func (b *ChannelBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return b.publisher.Publish(b.topic, msg)
}

// Decode reads an event written by ChannelBus.
func Decode(payload []byte) (BaseEvent, error) {
	var evt BaseEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if evt.Type == "" {
		return BaseEvent{}, errors.New("event without type")
	}
	return evt, nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"context"

	"court-advisor-be/internal/constant"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process analytics topic into the analytics log.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	analytics  logger.ILogger
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	analytics logger.ILogger,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		analytics:  analytics,
		logger:     logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	evt, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Warn(constant.AnalyticsLogModule, "Dropping undecodable event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Retrying cannot fix a bad payload.
		msg.Ack()
		return
	}

	RecordAnalytics(cs.analytics, evt)
	msg.Ack()
}

// RecordAnalytics writes one event line to the analytics log. It is shared
// with the NATS analytics worker.
func RecordAnalytics(analytics logger.ILogger, evt events.Event) {
	payload := evt.Payload()
	details := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		details[k] = v
	}
	details["event_type"] = evt.EventType()
	details["occurred_at"] = evt.Timestamp()
	analytics.Info(constant.AnalyticsLogModule, evt.EventType(), details)
}

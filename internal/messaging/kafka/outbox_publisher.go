package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka.
// Без фиксированного topic сообщение уходит в topic своего агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт паблишер, выбирающий topic по типу агрегата.
func NewOutboxPublisher(producer *Producer) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{producer: producer}
}

// NewDLQPublisher создаёт паблишер в Dead Letter Queue.
func NewDLQPublisher(producer *Producer) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{producer: producer, topic: TopicDeadLetterQueue}
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	headers := map[string]string{
		HeaderEventType: event.EventType,
		HeaderOutboxID:  event.ID,
	}

	topic := TopicForAggregate(event.AggregateType)
	if p.topic != "" {
		headers[HeaderOriginalTopic] = topic
		headers[HeaderFailedAt] = time.Now().UTC().Format(time.RFC3339)
		topic = p.topic
	}

	return p.producer.PublishEvent(ctx, topic, key, NewEnvelope(event), headers)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcbs239/regtech/pkg/events"
	pkgkafka "github.com/bcbs239/regtech/pkg/kafka"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/event"
)

// MessageProducer is satisfied by *pkgkafka.Producer.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// Publisher publishes outbox entries to Kafka, keyed by batch ID so that the
// events of one analysis stay ordered within a partition.
type Publisher struct {
	producer MessageProducer
	logger   *slog.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(producer MessageProducer, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// Publish sends the entries in order, stopping at the first failure.
func (p *Publisher) Publish(ctx context.Context, entries ...events.OutboxEntry) error {
	for _, e := range entries {
		topic := topicForEvent(e.EventType)

		p.logger.DebugContext(ctx, "publishing event to Kafka",
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"topic", topic,
		)

		msg := pkgkafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				"event_id":       e.ID,
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
			},
		}
		if err := p.producer.Publish(ctx, topic, msg); err != nil {
			return fmt.Errorf("failed to publish event %s to topic %s: %w", e.EventType, topic, err)
		}
	}
	return nil
}

func topicForEvent(eventType string) string {
	switch eventType {
	case event.TypeAnalysisStarted,
		event.TypeChunkCompleted,
		event.TypeAnalysisCompleted,
		event.TypeAnalysisFailed:
		return eventType
	default:
		return "risk.unknown"
	}
}

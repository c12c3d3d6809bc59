// Package events announces finished batches on a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/UnknownOlympus/nearby/internal/models"
)

// EventBatchCompleted is the value of the event_type header.
const EventBatchCompleted = "batch.completed"

// BatchCompleted is the message body. Results are included in ranked order.
type BatchCompleted struct {
	RunID           string                 `json:"run_id"`
	Reference       models.Coordinates     `json:"reference"`
	ReferenceSource string                 `json:"reference_source"`
	Total           int                    `json:"total"`
	Succeeded       int                    `json:"succeeded"`
	Failed          int                    `json:"failed"`
	Nearest         *models.AddressResult  `json:"nearest,omitempty"`
	Results         []models.AddressResult `json:"results"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
}

// NewBatchCompleted builds the event for result.
func NewBatchCompleted(result *models.BatchResult) BatchCompleted {
	event := BatchCompleted{
		RunID:           result.RunID,
		Reference:       result.Reference,
		ReferenceSource: result.ReferenceSource,
		Total:           len(result.Results),
		Succeeded:       result.Succeeded(),
		Failed:          result.Failed(),
		Results:         result.Results,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
	}
	if len(result.Results) > 0 && result.Results[0].Succeeded() {
		nearest := result.Results[0]
		event.Nearest = &nearest
	}

	return event
}

// KafkaPublisher sends BatchCompleted events through a sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// NewProducerConfig returns the producer settings used by NewKafkaPublisher.
func NewProducerConfig() *sarama.Config {
	const retries = 3

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = retries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	return config
}

// NewKafkaPublisher connects to brokers.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("Kafka producer created", "brokers", brokers, "topic", topic)

	return NewKafkaPublisherWithProducer(producer, topic, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

// PublishBatchCompleted sends one event keyed by the run ID.
func (p *KafkaPublisher) PublishBatchCompleted(ctx context.Context, result *models.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewBatchCompleted(result))
	if err != nil {
		return fmt.Errorf("failed to encode batch event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(result.RunID),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(EventBatchCompleted)},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send batch event: %w", err)
	}

	p.log.DebugContext(ctx, "Batch event published",
		"run", result.RunID, "topic", p.topic, "partition", partition, "offset", offset)

	return nil
}

// Close closes the producer.
func (p *KafkaPublisher) Close() error { return p.producer.Close() }

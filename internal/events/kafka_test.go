package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/UnknownOlympus/nearby/internal/events"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *models.BatchResult {
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.BatchResult{
		RunID:           "run-1",
		Reference:       models.Coordinates{Longitude: 116.397428, Latitude: 39.90923},
		ReferenceSource: "manual",
		Results: []models.AddressResult{
			models.NewResolvedResult("三里屯", models.Coordinates{Longitude: 116.45, Latitude: 39.93}, 5400),
			models.NewFailedResult("火星", errors.New("地址解析失败: not found")),
		},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestNewBatchCompleted(t *testing.T) {
	event := events.NewBatchCompleted(sampleResult())

	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, 2, event.Total)
	assert.Equal(t, 1, event.Succeeded)
	assert.Equal(t, 1, event.Failed)
	require.NotNil(t, event.Nearest)
	assert.Equal(t, "三里屯", event.Nearest.Address)

	t.Run("no nearest when nothing resolved", func(t *testing.T) {
		result := sampleResult()
		result.Results = result.Results[1:]

		assert.Nil(t, events.NewBatchCompleted(result).Nearest)
	})
}

func TestKafkaPublisher_PublishBatchCompleted(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("message is keyed by run and carries the event", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, events.NewProducerConfig())
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			assert.Equal(t, "nearby.batches", msg.Topic)

			key, err := msg.Key.Encode()
			require.NoError(t, err)
			assert.Equal(t, "run-1", string(key))

			raw, err := msg.Value.Encode()
			require.NoError(t, err)
			var event events.BatchCompleted
			require.NoError(t, json.Unmarshal(raw, &event))
			assert.Equal(t, "manual", event.ReferenceSource)
			assert.Len(t, event.Results, 2)

			require.Len(t, msg.Headers, 1)
			assert.Equal(t, events.EventBatchCompleted, string(msg.Headers[0].Value))
			return nil
		})

		publisher := events.NewKafkaPublisherWithProducer(producer, "nearby.batches", logger)
		require.NoError(t, publisher.PublishBatchCompleted(t.Context(), sampleResult()))
		require.NoError(t, publisher.Close())
	})

	t.Run("send failure is returned", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, events.NewProducerConfig())
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		publisher := events.NewKafkaPublisherWithProducer(producer, "nearby.batches", logger)
		err := publisher.PublishBatchCompleted(t.Context(), sampleResult())

		require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, publisher.Close())
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, events.NewProducerConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		publisher := events.NewKafkaPublisherWithProducer(producer, "nearby.batches", logger)
		err := publisher.PublishBatchCompleted(ctx, sampleResult())

		require.ErrorIs(t, err, context.Canceled)
		require.NoError(t, publisher.Close())
	})
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKafkaEmitterPublishes(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != TypeOrderCreated {
			return errors.New("unexpected event type " + ev.Type)
		}
		return nil
	})

	emitter := NewKafkaEmitter(producer, "backoffice.events", zap.NewNop())
	err := emitter.Emit(context.Background(), New(TypeOrderCreated, "New order placed", "123", nil))
	require.NoError(t, err)
	require.NoError(t, emitter.Close())
}

func TestKafkaEmitterRetriesThenFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	for i := 0; i < kafkaMaxAttempts; i++ {
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	emitter := NewKafkaEmitter(producer, "backoffice.events", zap.NewNop())
	err := emitter.Emit(context.Background(), New(TypeOrderCreated, "New order placed", "123", nil))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, emitter.Close())
}

func TestKafkaEmitterStopsOnCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emitter := NewKafkaEmitter(producer, "backoffice.events", zap.NewNop())
	err := emitter.Emit(ctx, New(TypeOrderCreated, "New order placed", "123", nil))
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, emitter.Close())
}

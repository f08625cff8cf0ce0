package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/smallbiznis/backoffice/internal/config"
	"go.uber.org/zap"
)

const (
	kafkaMaxAttempts = 3
	kafkaBaseDelay   = 100 * time.Millisecond
)

// KafkaEmitter publishes events to a single topic keyed by subject.
type KafkaEmitter struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaEmitter(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		producer: producer,
		topic:    topic,
		log:      log.Named("events.kafka"),
	}
}

func (k *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := event.SubjectID
	if key == "" {
		key = event.Type
	}
	message := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
			{Key: []byte("event-id"), Value: []byte(event.ID)},
			{Key: []byte("timestamp"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}

	for attempt := 1; ; attempt++ {
		partition, offset, err := k.producer.SendMessage(message)
		if err == nil {
			k.log.Debug("event published",
				zap.String("event_type", event.Type),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
			)
			return nil
		}
		if attempt == kafkaMaxAttempts {
			return fmt.Errorf("publish %s after %d attempts: %w", event.Type, attempt, err)
		}
		k.log.Warn("publish failed, retrying",
			zap.String("event_type", event.Type),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(kafkaBaseDelay << (attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (k *KafkaEmitter) Close() error {
	return k.producer.Close()
}

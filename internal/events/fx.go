package events

import (
	"context"

	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewHub),
	fx.Provide(provideEmitter),
)

type emitterParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Hub       *Hub
	Metrics   *metrics.Metrics `optional:"true"`
}

func provideEmitter(p emitterParams) (Emitter, error) {
	sinks := []Emitter{p.Hub}

	var kafka *KafkaEmitter
	if p.Config.Kafka.Enabled && len(p.Config.Kafka.Brokers) > 0 {
		producer, err := NewKafkaProducer(p.Config.Kafka)
		if err != nil {
			return nil, err
		}
		kafka = NewKafkaEmitter(producer, p.Config.Kafka.Topic, p.Log)
		sinks = append(sinks, kafka)
		p.Log.Info("kafka event sink enabled",
			zap.Strings("brokers", p.Config.Kafka.Brokers),
			zap.String("topic", p.Config.Kafka.Topic),
		)
	}

	dispatcher := NewDispatcher(Multi(sinks...), p.Log, p.Metrics)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			dispatcher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := dispatcher.Stop(ctx)
			if kafka != nil {
				if closeErr := kafka.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}
			return err
		},
	})
	return dispatcher, nil
}

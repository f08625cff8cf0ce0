package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pushInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

type exporterFactory func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error)

var exporters = map[string]exporterFactory{
	"grpc": func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	},
	"http": func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	},
}

// exporterFor accepts "grpc" and "http" with an optional "/protobuf"
// suffix. An empty protocol means grpc.
func exporterFor(protocol string) (exporterFactory, error) {
	key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(protocol)), "/protobuf")
	if key == "" {
		key = "grpc"
	}
	factory, ok := exporters[key]
	if !ok {
		return nil, fmt.Errorf("metrics: unsupported OTLP protocol %q", protocol)
	}
	return factory, nil
}

// NewProvider installs the global meter provider. With export disabled
// every instrument is a no-op; the Prometheus /metrics endpoint is served
// separately and is not affected.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	factory, err := exporterFor(cfg.ExporterProtocol)
	if err != nil {
		return nil, err
	}
	exporter, err := factory(context.Background(), cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(pushInterval)),
	))
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}

	log.Info("metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
		zap.Duration("interval", pushInterval),
	)
	return provider, nil
}

package observability

import (
	"strings"

	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/observability/logger"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/observability/tracing"
	"github.com/spf13/viper"
)

// Config is the telemetry section of the service settings. Values come from
// the standard OTEL_* variables plus LOG_LEVEL and LOG_FORMAT, falling back
// to the application config.
type Config struct {
	Service     string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	Export      bool
	Endpoint    string
	Protocol    string
	SampleRatio float64
}

func LoadConfig(app config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DEPLOYMENT_ENV", app.Environment)
	v.SetDefault("SERVICE_VERSION", app.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", app.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	protocol := v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")
	if strings.TrimSpace(protocol) == "" {
		protocol = v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	service := strings.TrimSpace(app.AppName)
	if service == "" {
		service = "backoffice"
	}

	return Config{
		Service:     service,
		Environment: strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:     strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:    lower(v.GetString("LOG_LEVEL")),
		LogFormat:   lower(v.GetString("LOG_FORMAT")),
		Export:      v.GetBool("OTEL_ENABLED"),
		Endpoint:    strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Protocol:    lower(protocol),
		SampleRatio: v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}
}

// Debug is true for debug logging or any non-deployed environment.
func (c Config) Debug() bool {
	if lower(c.LogLevel) == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		Service:       c.Service,
		Environment:   c.Environment,
		Version:       c.Version,
		Level:         c.LogLevel,
		Format:        c.LogFormat,
		Caller:        true,
		StackOnErrors: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Export,
		ServiceName:      c.Service,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Endpoint,
		ExporterProtocol: c.Protocol,
		SamplingRatio:    c.SampleRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Export,
		ExporterEndpoint: c.Endpoint,
		ExporterProtocol: c.Protocol,
		ServiceName:      c.Service,
		Environment:      c.Environment,
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

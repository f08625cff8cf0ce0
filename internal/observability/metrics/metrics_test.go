package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("to_status", "shipped"),
		attribute.String("user_id", "456"),
		attribute.String("reason", "insufficient_stock"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "to_status" && attrs[1].Key != "to_status" {
		t.Fatalf("expected to_status to be retained")
	}
	if attrs[0].Key != "reason" && attrs[1].Key != "reason" {
		t.Fatalf("expected reason to be retained")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOrderPlaced(context.Background(), "cash")
	m.RecordPlacementFailure(context.Background(), "empty_order")
	m.RecordStatusTransition(context.Background(), "pending", "confirmed")
	m.RecordRateLimitDenied(context.Background(), "/api/orders", "user")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordOrderPlaced(context.Background(), "card")
	m.RecordEventEmitted(context.Background(), "order.created", "hub")
}

func TestCountersRecordThroughSDK(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "test"}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordOrderPlaced(context.Background(), "card")
	m.RecordOrderPlaced(context.Background(), "card")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, got := range scope.Metrics {
			if got.Name != ordersPlaced {
				continue
			}
			sum, ok := got.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
				t.Fatalf("unexpected data for %s: %#v", got.Name, got.Data)
			}
			return
		}
	}
	t.Fatalf("%s not collected", ordersPlaced)
}

func TestExporterFor(t *testing.T) {
	for _, protocol := range []string{"", "grpc", "GRPC/protobuf", "http", "http/protobuf"} {
		if _, err := exporterFor(protocol); err != nil {
			t.Fatalf("protocol %q: %v", protocol, err)
		}
	}
	if _, err := exporterFor("udp"); err == nil {
		t.Fatal("expected udp to be rejected")
	}
}

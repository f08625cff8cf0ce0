package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the order, event and rate limit counters. A nil *Metrics
// records nothing.
type Metrics struct {
	counters map[string]metric.Int64Counter
}

const (
	ordersPlaced      = "backoffice_orders_placed_total"
	placementFailures = "backoffice_order_placement_failures_total"
	statusTransitions = "backoffice_order_status_transitions_total"
	eventsEmitted     = "backoffice_events_emitted_total"
	rateLimitAllowed  = "backoffice_rate_limit_allowed_total"
	rateLimitDenied   = "backoffice_rate_limit_denied_total"
)

var counterHelp = map[string]string{
	ordersPlaced:      "Orders accepted, by payment method.",
	placementFailures: "Order placements rejected, by reason.",
	statusTransitions: "Fulfillment status changes.",
	eventsEmitted:     "Domain events handed to a sink.",
	rateLimitAllowed:  "Requests admitted by the rate limiter.",
	rateLimitDenied:   "Requests rejected by the rate limiter.",
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "backoffice"
	}
	meter := provider.Meter(name)

	m := &Metrics{counters: make(map[string]metric.Int64Counter, len(counterHelp))}
	for counter, help := range counterHelp {
		c, err := meter.Int64Counter(counter, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", counter, err)
		}
		m.counters[counter] = c
	}
	return m, nil
}

func (m *Metrics) inc(ctx context.Context, counter string, labels ...attribute.KeyValue) {
	if m == nil {
		return
	}
	c, ok := m.counters[counter]
	if !ok {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(FilterAttributes(labels...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

func (m *Metrics) RecordOrderPlaced(ctx context.Context, paymentMethod string) {
	m.inc(ctx, ordersPlaced, label("payment_method", paymentMethod))
}

func (m *Metrics) RecordPlacementFailure(ctx context.Context, reason string) {
	m.inc(ctx, placementFailures, label("reason", reason))
}

func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	m.inc(ctx, statusTransitions, label("from_status", from), label("to_status", to))
}

func (m *Metrics) RecordEventEmitted(ctx context.Context, eventType, sink string) {
	m.inc(ctx, eventsEmitted, label("event_type", eventType), label("sink", sink))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	m.inc(ctx, rateLimitAllowed, label("endpoint", endpoint))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	m.inc(ctx, rateLimitDenied, label("endpoint", endpoint), label("reason", reason))
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":       {},
	"status_code":    {},
	"payment_method": {},
	"from_status":    {},
	"to_status":      {},
	"event_type":     {},
	"sink":           {},
	"reason":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 256
	deliveryTimeout     = 10 * time.Second
	defaultDispatchSink = "dispatcher"
)

var ErrDispatcherStopped = errors.New("dispatcher_stopped")

// Dispatcher decouples request handlers from slow sinks. Emit only enqueues;
// a single worker delivers to the wrapped emitter in order.
type Dispatcher struct {
	next    Emitter
	log     *zap.Logger
	metrics *metrics.Metrics

	queue    chan Event
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func NewDispatcher(next Emitter, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		next:    next,
		log:     log.Named("events.dispatcher"),
		metrics: m,
		queue:   make(chan Event, defaultQueueSize),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go d.run()
}

// Emit enqueues without blocking; a full queue drops the event.
func (d *Dispatcher) Emit(_ context.Context, event Event) error {
	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.log.Warn("event queue full, dropping event",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
		)
		return nil
	}
}

// Stop drains queued events and waits for the worker, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopped) })
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stopped:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := d.next.Emit(ctx, event); err != nil {
		d.log.Warn("event delivery failed",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	d.metrics.RecordEventEmitted(ctx, event.Type, defaultDispatchSink)
}

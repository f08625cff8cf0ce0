package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestDispatcherDeliversAndDrainsOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingEmitter{}
	d := NewDispatcher(sink, zap.NewNop(), nil)
	d.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Emit(context.Background(), New(TypeOrderCreated, "New order placed", "", nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 5, sink.count())

	assert.ErrorIs(t, d.Emit(context.Background(), Event{}), ErrDispatcherStopped)
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingEmitter{err: errors.New("broker down")}
	d := NewDispatcher(sink, zap.NewNop(), nil)
	d.Start()

	require.NoError(t, d.Emit(context.Background(), New(TypeNotification, "hello", "", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 1, sink.count())
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingEmitter{}
	bad := &recordingEmitter{err: errors.New("boom")}

	err := Multi(ok, nil, bad).Emit(context.Background(), New(TypeNotification, "x", "", nil))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())

	assert.NoError(t, Nop().Emit(context.Background(), Event{}))
}

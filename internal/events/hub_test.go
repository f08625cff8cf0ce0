package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()

	t.Run("publish without subscribers keeps no backlog", func(t *testing.T) {
		hub.Publish(ChannelAdmin, New(TypeNotification, "ignored", "", nil))
		sub, backlog, err := hub.Subscribe(ChannelAdmin)
		require.NoError(t, err)
		defer sub.Close()
		assert.Empty(t, backlog)
	})

	t.Run("subscriber receives events and late subscriber gets backlog", func(t *testing.T) {
		first, _, err := hub.Subscribe(ChannelAdmin)
		require.NoError(t, err)
		defer first.Close()

		require.NoError(t, hub.Emit(context.Background(), New(TypeOrderCreated, "New order placed", "1", nil)))

		select {
		case ev := <-first.Events():
			assert.Equal(t, TypeOrderCreated, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}

		second, backlog, err := hub.Subscribe(ChannelAdmin)
		require.NoError(t, err)
		defer second.Close()
		require.Len(t, backlog, 1)
		assert.Equal(t, "New order placed", backlog[0].Message)
	})

	t.Run("events only reach their channels", func(t *testing.T) {
		userSub, _, err := hub.Subscribe(UserChannel("7"))
		require.NoError(t, err)
		defer userSub.Close()

		ev := New(TypeOrderStatusChanged, "shipped", "1", nil)
		ev.Channels = []string{UserChannel("8")}
		require.NoError(t, hub.Emit(context.Background(), ev))

		select {
		case <-userSub.Events():
			t.Fatal("unexpected delivery to another user")
		default:
		}
	})

	t.Run("empty channel rejected", func(t *testing.T) {
		_, _, err := hub.Subscribe("  ")
		assert.ErrorIs(t, err, ErrInvalidChannel)
	})
}

func TestHubBacklogBounded(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(ChannelAdmin)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultBufferSize+10; i++ {
		hub.Publish(ChannelAdmin, New(TypeNotification, fmt.Sprintf("n%d", i), "", nil))
	}

	_, backlog, err := hub.Subscribe(ChannelAdmin)
	require.NoError(t, err)
	assert.Len(t, backlog, DefaultBufferSize)
	assert.Equal(t, "n10", backlog[0].Message)
}

func TestHubCloseRemovesStream(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(ChannelAdmin)
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.streams)
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	_, _, err := hub.Subscribe(ChannelAdmin)
	assert.ErrorIs(t, err, ErrHubUnavailable)
	assert.ErrorIs(t, hub.Emit(context.Background(), Event{}), ErrHubUnavailable)
}

func TestHubConcurrentPublishDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	sub, _, err := hub.Subscribe(ChannelAdmin)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(ChannelAdmin, New(TypeNotification, "x", "", nil))
		}
	}()
	<-done
	sub.Close()
}

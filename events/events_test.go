package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Broadcast(&Event{Kind: StatusChanged, Value: "streaming"})

	select {
	case e := <-ch:
		assert.Equal(t, StatusChanged, e.Kind)
		assert.Equal(t, "streaming", e.Value)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSubscribeReplaysLastEvent(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(&Event{Kind: StreamError, StreamID: "a", Value: "boom"})

	_, ch, cancel := hub.Subscribe()
	defer cancel()

	e := <-ch
	assert.Equal(t, "a", e.StreamID)
}

func TestSubscribeWithoutHistoryIsEmpty(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	defer cancel()
	assert.Len(t, ch, 0)
}

func TestBroadcastDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := NewHub()
	_, _, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast(&Event{Kind: StatusChanged, Value: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())
}

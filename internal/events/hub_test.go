package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Append(evt Event) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

func TestPublishAssignsSequence(t *testing.T) {
	hub := NewHub(10)
	first := hub.Publish(Event{Type: Started, URL: "https://a.test/"})
	second := hub.Publish(Event{Type: Updated, URL: "https://a.test/", Identity: "id-a"})

	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, uint64(2), second.Sequence)
	require.False(t, second.Timestamp.IsZero())

	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	require.NoError(t, err)
	require.Equal(t, uint64(2), next)
	require.Len(t, events, 2)
	require.Equal(t, Started, events[0].Type)
	require.Equal(t, Updated, events[1].Type)
}

func TestFetchSinceSkipsSeen(t *testing.T) {
	hub := NewHub(10)
	for i := 0; i < 4; i++ {
		hub.Publish(Event{Type: Started})
	}
	events, _, err := hub.Fetch(context.Background(), 2, 0, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(3), events[0].Sequence)

	events, _, err = hub.Fetch(context.Background(), 4, 0, false)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestRingDropsOldest(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: Started})
	}
	require.Equal(t, uint64(3), hub.FirstSequence())

	events, next := hub.Tail(10)
	require.Len(t, events, 3)
	require.Equal(t, uint64(5), next)
	require.Equal(t, uint64(3), events[0].Sequence)

	// A reader that fell behind resumes at the oldest buffered event.
	events, _, err := hub.Fetch(context.Background(), 1, 2, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(3), events[0].Sequence)
}

func TestFetchWaitWakesOnPublish(t *testing.T) {
	hub := NewHub(10)
	done := make(chan []Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 0, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(Event{Type: Failed, URL: "https://b.test/", Error: "capture unavailable"})

	select {
	case events := <-done:
		require.Len(t, events, 1)
		require.Equal(t, Failed, events[0].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by publish")
	}
}

func TestFetchWaitHonoursContext(t *testing.T) {
	hub := NewHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	events, _, err := hub.Fetch(ctx, 0, 0, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, events)
}

func TestSinkReceivesEvents(t *testing.T) {
	hub := NewHub(2)
	sink := &recordingSink{}
	hub.AddSink(sink)
	hub.Publish(Event{Type: Started})
	hub.Publish(Event{Type: Updated})
	hub.Publish(Event{Type: Started})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 3)
}

func TestNilHubIsInert(t *testing.T) {
	var hub *Hub
	evt := hub.Publish(Event{Type: Started})
	require.Zero(t, evt.Sequence)
	events, next, err := hub.Fetch(context.Background(), 7, 0, true)
	require.NoError(t, err)
	require.Nil(t, events)
	require.Equal(t, uint64(7), next)
}

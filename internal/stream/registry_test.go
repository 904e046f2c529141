package stream

import (
	"context"
	"testing"
	"time"

	"github.com/steventanyang/deployable/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartCreatesEntry(t *testing.T) {
	r := NewRegistry()

	id := r.Start()
	assert.NotEmpty(t, id)
	assert.True(t, r.Exists(id))
	assert.Equal(t, 1, r.Len())

	other := r.Start()
	assert.NotEqual(t, id, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_PublishUnknownID(t *testing.T) {
	r := NewRegistry()

	err := r.Publish("nope", NewHeartbeatEvent())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ConnectUnknownID(t *testing.T) {
	r := NewRegistry()

	err := r.Connect(context.Background(), "nope", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	// Connecting to an unknown id must not create an entry.
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConnectDeliversUntilComplete(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	rec := types.Recommendation{Title: "Missing healthcheck", FilePath: "Dockerfile"}
	require.NoError(t, r.Publish(id, NewProgressEvent(0, []string{"Dockerfile"}, 1)))
	require.NoError(t, r.Publish(id, NewRecommendationEvent(rec)))
	require.NoError(t, r.Publish(id, NewCompleteEvent([]types.Recommendation{rec}, "2024-01-01T00:00:00Z")))

	var got []Event
	err := r.Connect(context.Background(), id, func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, EventProgress, got[0].Type)
	assert.Equal(t, 0, got[0].Progress.ChunkIndex)
	assert.Equal(t, EventRecommendation, got[1].Type)
	assert.Equal(t, "Missing healthcheck", got[1].Recommendation.Title)
	assert.Equal(t, EventComplete, got[2].Type)
	assert.Equal(t, "2024-01-01T00:00:00Z", got[2].Complete.AnalysisTimestamp)

	// Entry is gone once complete has been drained.
	assert.False(t, r.Exists(id))
}

func TestRegistry_ConnectTerminatesOnError(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	require.NoError(t, r.Publish(id, NewErrorEvent("analysis failed")))

	var got []Event
	err := r.Connect(context.Background(), id, func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Type)
	assert.False(t, r.Exists(id))
}

func TestRegistry_ConnectDropsUnknownEventTypes(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	require.NoError(t, r.Publish(id, Event{Type: EventType("bogus")}))
	require.NoError(t, r.Publish(id, NewCompleteEvent(nil, "ts")))

	var got []Event
	err := r.Connect(context.Background(), id, func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventComplete, got[0].Type)
}

func TestRegistry_ConnectEmitsHeartbeatOnIdle(t *testing.T) {
	r := NewRegistry()
	r.heartbeatInterval = 20 * time.Millisecond
	id := r.Start()

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = r.Publish(id, NewCompleteEvent(nil, "ts"))
	}()

	var heartbeats int
	err := r.Connect(context.Background(), id, func(e Event) error {
		if e.Type == EventHeartbeat {
			heartbeats++
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, heartbeats, 1)
}

func TestRegistry_ConnectStopsOnContextCancel(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := r.Connect(ctx, id, func(Event) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// Generator teardown removes the entry even without a terminal event.
	assert.False(t, r.Exists(id))
}

func TestRegistry_EvictExpired(t *testing.T) {
	r := NewRegistry()
	r.entryTTL = 10 * time.Millisecond
	id := r.Start()

	time.Sleep(20 * time.Millisecond)
	r.evictExpired()

	assert.False(t, r.Exists(id))
}

func TestRegistry_PublishNeverBlocksWhenFull(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity+10; i++ {
			_ = r.Publish(id, NewHeartbeatEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

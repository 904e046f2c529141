package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no stream exists for an analysis id.
var ErrNotFound = errors.New("stream not found")

const (
	// DefaultHeartbeatInterval is how long the generator waits for an
	// event before synthesizing a heartbeat.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultEntryTTL bounds the life of an entry that is never consumed
	// to completion, closing the orphaned-queue leak.
	DefaultEntryTTL = 30 * time.Minute

	// queueCapacity sizes each per-analysis event queue. Producers never
	// block: an analysis emits at most a few events per chunk, well under
	// this bound, and overflow drops with a warning.
	queueCapacity = 256
)

type entry struct {
	queue     chan Event
	createdAt time.Time
}

// Registry is the process-wide mapping from analysis id to event queue.
// Entries are created on Start, removed when a consumer drains a terminal
// event, and evicted by the janitor after their TTL regardless of state.
type Registry struct {
	mu                sync.Mutex
	entries           map[string]*entry
	heartbeatInterval time.Duration
	entryTTL          time.Duration
}

// NewRegistry builds an empty registry with default timings.
func NewRegistry() *Registry {
	return &Registry{
		entries:           make(map[string]*entry),
		heartbeatInterval: DefaultHeartbeatInterval,
		entryTTL:          DefaultEntryTTL,
	}
}

// Start registers a fresh analysis id with an empty event queue and
// returns the id.
func (r *Registry) Start() string {
	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = &entry{
		queue:     make(chan Event, queueCapacity),
		createdAt: time.Now(),
	}
	r.mu.Unlock()

	slog.Info("Analysis stream registered", "analysis_id", id)
	return id
}

// Exists reports whether an entry is registered for id.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Publish pushes an event onto the queue for id. It never blocks: if the
// queue is full the event is dropped with a warning.
func (r *Registry) Publish(id string, event Event) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	select {
	case e.queue <- event:
		return nil
	default:
		slog.Warn("Stream queue full, dropping event", "analysis_id", id, "event_type", event.Type)
		return nil
	}
}

// Delete removes the entry for id. Safe to call for unknown ids.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Connect validates that id exists, then drives the event loop: it waits
// for the next event with the heartbeat timeout, synthesizes heartbeats on
// idle, drops events with unknown tags, and calls emit for everything
// else. The loop ends when a terminal event has been emitted, emit returns
// an error, or ctx is cancelled. The registry entry is deleted on exit;
// this is the cleanup path for consumed streams.
func (r *Registry) Connect(ctx context.Context, id string, emit func(Event) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	defer func() {
		r.Delete(id)
		slog.Info("Analysis stream closed", "analysis_id", id)
	}()

	timer := time.NewTimer(r.heartbeatInterval)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.heartbeatInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			if err := emit(NewHeartbeatEvent()); err != nil {
				return err
			}

		case event := <-e.queue:
			if !knownEventTypes[event.Type] {
				slog.Warn("Dropping event with unknown type", "analysis_id", id, "event_type", event.Type)
				continue
			}
			if err := emit(event); err != nil {
				return err
			}
			if event.IsTerminal() {
				return nil
			}
		}
	}
}

// RunJanitor evicts entries older than the TTL on a fixed interval until
// ctx is cancelled. Run it from the background manager.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}

func (r *Registry) evictExpired() {
	cutoff := time.Now().Add(-r.entryTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.createdAt.Before(cutoff) {
			delete(r.entries, id)
			slog.Warn("Evicted expired analysis stream", "analysis_id", id, "age", time.Since(e.createdAt).String())
		}
	}
}

// Package background tracks long-lived goroutines and resources that
// need orderly teardown at shutdown.
package background

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Manager owns background goroutines and registered closers. Go starts
// a tracked goroutine; Shutdown cancels them all, waits for them to
// drain, then closes resources in registration order.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// NewManager creates a manager whose goroutines run until Shutdown.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel}
}

// Go runs fn in a tracked goroutine. fn must return when its context is
// cancelled.
func (m *Manager) Go(name string, fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background task panicked", "task", name, "panic", r)
			}
		}()
		slog.Debug("Background task started", "task", name)
		fn(m.ctx)
		slog.Debug("Background task stopped", "task", name)
	}()
}

// AddCloser registers a resource to close during Shutdown.
func (m *Manager) AddCloser(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	m.mu.Lock()
	m.closers = append(m.closers, namedCloser{name: name, closer: closer})
	m.mu.Unlock()
}

// Shutdown cancels all tracked goroutines, waits up to timeout for them
// to finish, then closes registered resources.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("Background tasks did not stop within timeout", "timeout", timeout)
	}

	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	for _, nc := range closers {
		if err := nc.closer.Close(); err != nil {
			slog.Warn("Failed to close resource", "resource", nc.name, "error", err)
		}
	}
}

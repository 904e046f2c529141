package llm

import (
	"log/slog"
	"sync"
)

// Pool is a fixed-size reusable collection of clients. Get never blocks:
// when the pool is empty it hands out a fresh transient client instead,
// trading a strict size bound for availability. Put is uncapped, so the
// pool can grow past its initial size if callers are not symmetric; in
// practice every Get is paired with a Put.
type Pool struct {
	mu      sync.Mutex
	clients []Client
	factory func() (Client, error)
}

// NewPool builds a pool of size clients using factory. Construction fails
// if any initial client cannot be built, so misconfiguration surfaces at
// startup rather than mid-analysis.
func NewPool(size int, factory func() (Client, error)) (*Pool, error) {
	p := &Pool{
		clients: make([]Client, 0, size),
		factory: factory,
	}

	for i := 0; i < size; i++ {
		client, err := factory()
		if err != nil {
			return nil, err
		}
		p.clients = append(p.clients, client)
	}

	slog.Info("Initialized LLM client pool", "size", size)
	return p, nil
}

// Get pops a client from the pool, or constructs a transient one when the
// pool is empty.
func (p *Pool) Get() (Client, error) {
	p.mu.Lock()
	if n := len(p.clients); n > 0 {
		client := p.clients[n-1]
		p.clients = p.clients[:n-1]
		p.mu.Unlock()
		return client, nil
	}
	p.mu.Unlock()

	slog.Debug("LLM pool empty, creating transient client")
	return p.factory()
}

// Put returns a client to the pool.
func (p *Pool) Put(client Client) {
	if client == nil {
		return
	}
	p.mu.Lock()
	p.clients = append(p.clients, client)
	p.mu.Unlock()
}

// Size reports the number of idle clients currently held.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

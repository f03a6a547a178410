package triage

import (
	"context"
	"fmt"
	"sync"
)

// Guard serializes runs per ticket. Acquire fails with ErrTriageInProgress
// while another run holds the ticket; release must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, ticketID string) (release func(), err error)
}

// LocalGuard is an in-process single-flight guard keyed by ticket id.
type LocalGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewLocalGuard returns an empty guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{running: make(map[string]struct{})}
}

// Acquire implements Guard.
func (g *LocalGuard) Acquire(_ context.Context, ticketID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[ticketID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrTriageInProgress, ticketID)
	}
	g.running[ticketID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, ticketID)
			g.mu.Unlock()
		})
	}, nil
}

// Package guard serializes submissions per user so the active-record check
// and record creation happen as one step.
package guard

import (
	"context"
	"sync"

	id "kycgate/pkg/domain"
)

// InMemory is a per-user lock for single-process deployments.
type InMemory struct {
	mu    sync.Mutex
	locks map[id.UserID]chan struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{locks: make(map[id.UserID]chan struct{})}
}

// Acquire blocks until the user's lock is free or ctx is done.
func (g *InMemory) Acquire(ctx context.Context, userID id.UserID) (func(), error) {
	g.mu.Lock()
	lock, ok := g.locks[userID]
	if !ok {
		lock = make(chan struct{}, 1)
		g.locks[userID] = lock
	}
	g.mu.Unlock()

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, nil
}

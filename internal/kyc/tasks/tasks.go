// Package tasks tracks background pipelines by record so they can be
// cancelled individually and drained on shutdown.
package tasks

import (
	"context"
	"sync"

	id "kycgate/pkg/domain"
)

// Registry runs at most one task per record.
type Registry struct {
	mu      sync.Mutex
	running map[id.RecordID]context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

func NewRegistry() *Registry {
	return &Registry{running: make(map[id.RecordID]context.CancelFunc)}
}

// Start runs fn in a goroutine with a context derived from parent. It returns
// false when a task for the record is already running or the registry is shut down.
func (r *Registry) Start(parent context.Context, recordID id.RecordID, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.running[recordID]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	r.running[recordID] = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(recordID)
		defer cancel()
		fn(ctx)
	}()
	return true
}

// Claim marks the record busy for a synchronous caller. It returns false when
// a task or another claim already holds the record.
func (r *Registry) Claim(recordID id.RecordID) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	if _, held := r.running[recordID]; held {
		return nil, false
	}
	r.running[recordID] = func() {}
	var once sync.Once
	return func() { once.Do(func() { r.remove(recordID) }) }, true
}

func (r *Registry) remove(recordID id.RecordID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, recordID)
}

func (r *Registry) Running(recordID id.RecordID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[recordID]
	return ok
}

// Cancel signals the record's task to stop. It does not wait.
func (r *Registry) Cancel(recordID id.RecordID) {
	r.mu.Lock()
	cancel, ok := r.running[recordID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Wait blocks until every started task has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones until ctx is
// done, then cancels whatever is left.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		for _, cancel := range r.running {
			cancel()
		}
		r.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

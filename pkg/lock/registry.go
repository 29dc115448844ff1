// Package lock serializes operations on the same vault file within one
// process. Entries are not persisted and do not coordinate separate processes.
package lock

import (
	"sync"
	"time"
)

const (
	// Timeout is the age after which a lock is considered stale.
	Timeout = 30 * time.Second
	// SweepInterval is how often the Sweeper clears stale locks.
	SweepInterval = 60 * time.Second
)

type entry struct {
	path       string
	acquiredAt time.Time
}

// Registry grants at most one active operation per file path.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	timeout time.Duration
	now     func() time.Time
}

// NewRegistry creates an empty registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		timeout: Timeout,
		now:     time.Now,
	}
}

// WithClock replaces the registry clock. Used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func (r *Registry) stale(e entry, now time.Time) bool {
	return now.Sub(e.acquiredAt) > r.timeout
}

// TryAcquire locks path. It fails only while a fresh entry exists; a stale
// entry is replaced.
func (r *Registry) TryAcquire(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[path]; ok && !r.stale(e, now) {
		return false
	}
	r.entries[path] = entry{path: path, acquiredAt: now}
	return true
}

// Release unlocks path. Releasing an unknown path is a no-op.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, path)
}

// IsLocked reports whether a fresh entry exists for path. A stale entry is
// removed on the way.
func (r *Registry) IsLocked(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		return false
	}
	if r.stale(e, r.now()) {
		delete(r.entries, path)
		return false
	}
	return true
}

// SweepExpired removes every stale entry and returns how many were removed.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for path, e := range r.entries {
		if r.stale(e, now) {
			delete(r.entries, path)
			removed++
		}
	}
	return removed
}

// Held lists the paths with fresh locks and when they were taken.
func (r *Registry) Held() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make(map[string]time.Time, len(r.entries))
	for path, e := range r.entries {
		if !r.stale(e, now) {
			out[path] = e.acquiredAt
		}
	}
	return out
}

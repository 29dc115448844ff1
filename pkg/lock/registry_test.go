package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewRegistry().WithClock(clock.Now), clock
}

func TestAcquireRelease(t *testing.T) {
	r, _ := newTestRegistry()

	assert.True(t, r.TryAcquire("Tasks/a.md"))
	assert.False(t, r.TryAcquire("Tasks/a.md"))
	assert.True(t, r.TryAcquire("Tasks/b.md"), "other paths are independent")
	assert.True(t, r.IsLocked("Tasks/a.md"))

	r.Release("Tasks/a.md")
	assert.False(t, r.IsLocked("Tasks/a.md"))
	assert.True(t, r.TryAcquire("Tasks/a.md"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()

	r.Release("missing.md")
	require.True(t, r.TryAcquire("a.md"))
	r.Release("a.md")
	r.Release("a.md")
	assert.Empty(t, r.Held())
}

func TestStaleLockIsReplaced(t *testing.T) {
	r, clock := newTestRegistry()

	require.True(t, r.TryAcquire("a.md"))
	clock.Advance(Timeout)
	assert.False(t, r.TryAcquire("a.md"), "exactly at the timeout the lock still holds")

	clock.Advance(time.Millisecond)
	assert.True(t, r.TryAcquire("a.md"))
	assert.False(t, r.TryAcquire("a.md"), "the replacement is fresh")
}

func TestIsLockedDropsStaleEntry(t *testing.T) {
	r, clock := newTestRegistry()

	require.True(t, r.TryAcquire("a.md"))
	clock.Advance(Timeout + time.Second)
	assert.False(t, r.IsLocked("a.md"))
	assert.Zero(t, r.SweepExpired(), "IsLocked already removed it")
}

func TestSweepExpired(t *testing.T) {
	r, clock := newTestRegistry()

	require.True(t, r.TryAcquire("old-1.md"))
	require.True(t, r.TryAcquire("old-2.md"))
	clock.Advance(20 * time.Second)
	require.True(t, r.TryAcquire("new.md"))
	clock.Advance(15 * time.Second)

	assert.Equal(t, 2, r.SweepExpired())
	assert.Equal(t, 0, r.SweepExpired())
	held := r.Held()
	assert.Len(t, held, 1)
	assert.Contains(t, held, "new.md")
}

func TestTryAcquireIsAtomic(t *testing.T) {
	r := NewRegistry()

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("contended.md") {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted)
}

func TestSweeperStopRunsFinalSweep(t *testing.T) {
	r, clock := newTestRegistry()
	require.True(t, r.TryAcquire("a.md"))
	clock.Advance(time.Minute)

	s := NewSweeper(r, time.Hour, nil)
	s.Start()
	s.Stop()
	s.Stop()

	assert.Empty(t, r.Held())
	assert.Zero(t, r.SweepExpired())
}

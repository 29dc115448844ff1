package lock

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically clears stale locks left by operations that never
// released them.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSweeper creates a sweeper. A non-positive interval means SweepInterval.
func NewSweeper(registry *Registry, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the loop, waits for it and runs one last sweep.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.sweep()
	})
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	if n := s.registry.SweepExpired(); n > 0 {
		s.logger.Debug("lock: removed expired locks", "count", n)
	}
}

// Package expiry runs the periodic sweep that closes auto-close
// notifications once they pass their deadline.
package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/model"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Sweeper removes expired notifications and returns them.
type Sweeper interface {
	CloseExpired() []*model.NotificationSession
}

// Scheduler calls CloseExpired on its sweeper at a fixed interval.
// The sweeper's own lock is the only serialization with other callers.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler. A non-positive interval selects DefaultInterval.
func New(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Interval returns the poll interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Running reports whether the sweep loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the sweep loop. Calling Start on a running scheduler is a
// no-op. The loop also ends when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)

	s.logger.Debug("expiry scheduler started", "interval", s.interval)
}

// Stop ends the sweep loop and waits for it to exit. A sweep already in
// progress completes first; no sweep starts after Stop returns. Stop may be
// called any number of times from any goroutine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	close(stopCh)
	s.mu.Unlock()

	<-doneCh
	s.logger.Debug("expiry scheduler stopped")
}

// Close stops the scheduler. It implements io.Closer.
func (s *Scheduler) Close() error {
	s.Stop()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped(stopCh)
			return
		case <-stopCh:
			return
		case <-ticker.C:
			// A tick and a stop may be ready together; prefer stopping.
			select {
			case <-stopCh:
				return
			default:
			}
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	expired := s.sweeper.CloseExpired()
	if len(expired) > 0 {
		s.logger.Debug("closed expired notifications", "count", len(expired))
	}
}

// markStopped clears the running flag after a context cancellation, unless
// a later Start already replaced this loop.
func (s *Scheduler) markStopped(stopCh <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == stopCh {
		s.running = false
	}
}

package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Callback performs one poll round trip. ctx is cancelled when the loop is stopped or replaced.
type Callback func(ctx context.Context)

// Scheduler runs at most one repeating poll loop. The callback always runs on the loop
// goroutine, so invocations never overlap; ticks that fall due while a callback is still
// running are dropped.
type Scheduler struct {
	logger *slog.Logger

	startMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}

	ticks   atomic.Uint64
	skipped atomic.Uint64
}

// NewScheduler creates an idle scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Start launches a loop calling callback every interval. Any running loop is cancelled and
// has exited before the new one begins. Start must not be called from inside a callback.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, callback Callback) error {
	if interval <= 0 {
		return errors.New("polling interval must be positive")
	}
	if callback == nil {
		return errors.New("polling callback is required")
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	oldCancel, oldDone := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if oldDone != nil {
		<-oldDone
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	trigger := make(chan struct{}, 1)

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.trigger = trigger
	s.mu.Unlock()

	s.logger.Debug("Polling loop started", "interval", interval)
	go s.loop(loopCtx, interval, callback, trigger, done)
	return nil
}

// Stop cancels the running loop. It is idempotent and may be called from inside the callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.logger.Debug("Polling loop stopped")
	}
}

// Trigger requests an immediate tick. Requests made while one is already pending are merged.
// It reports false when no loop is running.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return true
}

// Active reports whether a loop is running and has not been stopped
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil || s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the most recently started loop has exited
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Ticks returns how many callbacks have run in total
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Skipped returns how many ticks were dropped because a callback overran the interval
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, callback Callback, trigger <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-trigger:
		}

		if ctx.Err() != nil {
			return
		}

		startTime := time.Now()
		callback(ctx)
		s.ticks.Add(1)

		if elapsed := time.Since(startTime); elapsed >= interval {
			missed := uint64(elapsed / interval)
			s.skipped.Add(missed)
			s.logger.Debug("Poll overran interval, skipping ticks",
				"elapsed", elapsed,
				"skipped", missed)
		}
	}
}

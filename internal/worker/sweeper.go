package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	rlog "rapport/internal/log"
)

// DefaultSweepInterval is how often pending rows are retried.
const DefaultSweepInterval = time.Minute

// Sweeper periodically runs SyncWorker.ProcessPending.
type Sweeper struct {
	worker   *SyncWorker
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(w *SyncWorker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{worker: w, interval: interval, logger: w.logger}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)

	s.logger.InfoContext(ctx, "Pending sync sweeper started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "Pending sync sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Pending sync sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.worker.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "Pending sync sweep failed", rlog.FieldError, err)
			}
		}
	}
}

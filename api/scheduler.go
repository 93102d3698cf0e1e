/*
scheduler.go - Periodic employee snapshot sync

PURPOSE:
  The employee directory caches the configuration active today for display.
  A change request dated in the future leaves that cache stale until its
  effective date arrives. The scheduler periodically asks payroll.Service to
  refresh every snapshot that no longer matches the ledger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - A failed employee is logged and retried on the next tick

USAGE:
  scheduler := NewSnapshotScheduler(service, logger)
  scheduler.CheckInterval = 15 * time.Minute
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll/service.go: SyncSnapshots
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SnapshotSyncer is the part of payroll.Service the scheduler drives.
type SnapshotSyncer interface {
	SyncSnapshots(ctx context.Context) (int, error)
}

// SnapshotScheduler refreshes stale employee snapshots on a ticker.
type SnapshotScheduler struct {
	Syncer        SnapshotSyncer
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a new scheduler.
func NewSnapshotScheduler(syncer SnapshotSyncer, logger *zap.Logger) *SnapshotScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotScheduler{
		Syncer:        syncer,
		Logger:        logger.Named("snapshot-scheduler"),
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler does nothing.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", zap.Duration("check_interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sync to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("stopped")
}

func (s *SnapshotScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one sync immediately and returns the number of snapshots
// updated.
func (s *SnapshotScheduler) RunNow(ctx context.Context) int {
	start := time.Now()
	updated, err := s.Syncer.SyncSnapshots(ctx)
	if err != nil {
		s.Logger.Warn("sync finished with errors", zap.Int("updated", updated), zap.Error(err))
		return updated
	}
	if updated > 0 {
		s.Logger.Info("sync completed", zap.Int("updated", updated), zap.Duration("duration", time.Since(start)))
	}
	return updated
}

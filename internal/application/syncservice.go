package application

import (
	"context"
	"log/slog"
	"time"
)

// syncRequest represents a manual sync trigger.
type syncRequest struct {
	reason string
	done   chan error
}

// SyncService keeps a Registry in step with writes made by other processes
// sharing the same database. It syncs on a fixed interval as a fallback and
// on demand when a change notification arrives.
type SyncService struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	syncCh   chan syncRequest
}

// NewSyncService creates a SyncService. An interval of zero disables the
// periodic sync; SyncNow still works.
func NewSyncService(registry *Registry, interval time.Duration, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		syncCh:   make(chan syncRequest),
	}
}

// Start runs the sync loop until the context is canceled. All syncs run on
// this goroutine, so periodic and manual syncs never overlap.
func (s *SyncService) Start(ctx context.Context) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped")
			return
		case <-tick:
			if err := s.sync(ctx, "interval"); err != nil {
				s.logger.Error("periodic sync failed", "error", err)
			}
		case req := <-s.syncCh:
			req.done <- s.sync(ctx, req.reason)
		}
	}
}

// SyncNow asks the loop to reload every store and blocks until it has done
// so or the context is canceled.
func (s *SyncService) SyncNow(ctx context.Context, reason string) error {
	done := make(chan error, 1)
	req := syncRequest{
		reason: reason,
		done:   done,
	}

	select {
	case s.syncCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) sync(ctx context.Context, reason string) error {
	start := time.Now()
	if err := s.registry.Sync(ctx); err != nil {
		return err
	}
	s.logger.Debug("sync complete",
		"reason", reason,
		"duration", time.Since(start).Round(time.Microsecond),
	)
	return nil
}

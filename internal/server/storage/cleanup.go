package storage

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes expired uploads and reports how many were removed and how
// many backing files could not be deleted.
type Purger interface {
	PurgeExpired(ctx context.Context) (removed, failed int, err error)
}

// CleanupService purges expired uploads at startup and, optionally, on a
// fixed interval. Expiry is also enforced lazily on every request.
type CleanupService struct {
	purger   Purger
	interval time.Duration
	done     chan struct{}
}

// NewCleanupService creates a new cleanup service. A non-positive interval
// disables the loop.
func NewCleanupService(purger Purger, interval time.Duration) *CleanupService {
	return &CleanupService{
		purger:   purger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one purge pass immediately, then begins the cleanup loop in a
// background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	// Run once on start, even when the loop is disabled
	cs.RunOnce(ctx)

	if cs.interval <= 0 {
		slog.Info("periodic cleanup disabled")
		close(cs.done)
		return
	}

	slog.Info("cleanup service started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cs.RunOnce(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

// RunOnce performs a single purge pass and logs the outcome.
func (cs *CleanupService) RunOnce(ctx context.Context) {
	removed, failed, err := cs.purger.PurgeExpired(ctx)
	if err != nil {
		slog.Error("cleanup cycle failed", "error", err)
		return
	}

	if removed == 0 {
		slog.Debug("no expired uploads to clean up")
		return
	}

	slog.Info("cleanup cycle complete",
		"removed", removed,
		"failed", failed,
	)
}

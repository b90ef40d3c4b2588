package async

import (
	"context"
	"log/slog"
	"time"

	"github.com/statementhq/royalty-pipeline/internal/repository"
)

// Sweeper periodically fails jobs stuck in processing. The hosting
// environment enforces a wall-clock limit per job but does not transition
// abandoned jobs itself, so a job killed mid-processing would otherwise sit
// in that state forever and block re-claims.
type Sweeper struct {
	queue     repository.QueueRepository
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
}

func NewSweeper(queue repository.QueueRepository, interval, threshold time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{queue: queue, interval: interval, threshold: threshold, logger: logger}
}

// Run blocks until ctx is done, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started", "interval", s.interval, "stale_threshold", s.threshold)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.queue.FailStale(ctx, s.threshold); err != nil {
				s.logger.Error("sweeper sweep failed", "error", err)
			}
		}
	}
}

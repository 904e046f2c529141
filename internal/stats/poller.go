package stats

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often the poller rebroadcasts current
// totals so newly connected subscribers see a snapshot quickly.
const DefaultPollInterval = 5 * time.Second

// RunPoller republishes the current snapshot at a fixed interval until
// the context is cancelled. Intended to run as a background goroutine.
func (s *Service) RunPoller(ctx context.Context, interval time.Duration) {
	if s.rdb == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.publish(ctx, s.Current(ctx)); err != nil {
				slog.Warn("Stats poll broadcast failed", "error", err)
			}
		}
	}
}

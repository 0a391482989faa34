package reservation

import (
	"context"
	"time"
)

// RunReaper purges expired holds every interval until ctx is done.
func (l *Ledger) RunReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", every).Msg("hold reaper started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("hold reaper stopped")
			return
		case <-ticker.C:
			n, err := l.Purge(ctx)
			if err != nil {
				l.logger.Error().Err(err).Msg("hold purge failed")
				continue
			}
			if n > 0 {
				l.logger.Debug().Int("purged", n).Msg("expired holds removed")
			}
		}
	}
}

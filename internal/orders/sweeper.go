package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes abandoned checkout attempts: sessions that were initiated
// but never received a completion signal from either path. Orders are never
// touched.
type Sweeper struct {
	db        *Database
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(db *Database, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Sweeper{
		db:        db,
		interval:  interval,
		retention: retention,
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "attempt_sweeper").Logger()
	logger.Info().Dur("retention", s.retention).Msg("starting attempt sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down attempt sweeper")
			return
		case <-ticker.C:
			removed, err := s.db.DeleteExpiredAttempts(time.Now().Add(-s.retention))
			if err != nil {
				logger.Error().Err(err).Msg("failed to sweep expired attempts")
				continue
			}
			if removed > 0 {
				logger.Info().Int64("removed", removed).Msg("swept abandoned checkout attempts")
			}
		}
	}
}

package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires stale reservations and prunes old gate
// events. CheckTimeout stays callable on demand; the sweeper is just
// the scheduled caller.
type Sweeper struct {
	spots         *SpotService
	ledger        *LedgerService
	interval      time.Duration
	retentionDays int
	log           zerolog.Logger
}

func NewSweeper(spots *SpotService, ledger *LedgerService, interval time.Duration, retentionDays int, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		spots:         spots,
		ledger:        ledger,
		interval:      interval,
		retentionDays: retentionDays,
		log:           log,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cancelled, err := s.spots.SweepTimeouts(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reservation sweep failed")
	} else if len(cancelled) > 0 {
		s.log.Info().Strs("spots", cancelled).Msg("expired reservations cancelled")
	}

	if s.retentionDays > 0 {
		if _, err := s.ledger.CleanupOldEvents(ctx, s.retentionDays); err != nil {
			s.log.Error().Err(err).Msg("gate event cleanup failed")
		}
	}
}

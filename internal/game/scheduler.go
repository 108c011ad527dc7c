package game

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the engine's two background duties: settling finished
// production tickets and the once-daily leaderboard snapshot at midnight.
type Scheduler struct {
	svc         *Service
	log         *slog.Logger
	settleEvery time.Duration
	now         func() time.Time
}

func NewScheduler(svc *Service, logger *slog.Logger, settleEvery time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if settleEvery <= 0 {
		settleEvery = 15 * time.Second
	}
	return &Scheduler{
		svc:         svc,
		log:         logger,
		settleEvery: settleEvery,
		now:         time.Now,
	}
}

// nextMidnight returns the next occurrence of local midnight strictly after
// now. Recomputed fresh each cycle, so a late wake-up fires immediately and
// schedules forward instead of drifting.
func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, 1)
}

// Run blocks until ctx is done. Overdue production tickets are settled
// straight away so a restart never loses a payout.
func (s *Scheduler) Run(ctx context.Context) {
	if n, err := s.svc.SettleDue(ctx); err != nil {
		s.log.Error("startup settle failed", "err", err)
	} else if n > 0 {
		s.log.Info("settled overdue productions", "count", n)
	}

	ticker := time.NewTicker(s.settleEvery)
	defer ticker.Stop()

	snapshot := time.NewTimer(time.Until(nextMidnight(s.now())))
	defer snapshot.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutdown")
			return
		case <-ticker.C:
			if n, err := s.svc.SettleDue(ctx); err != nil {
				s.log.Error("settle pass failed", "err", err)
			} else if n > 0 {
				s.log.Info("settled productions", "count", n)
			}
		case <-snapshot.C:
			if _, err := s.svc.SnapshotLeaderboard(ctx); err != nil {
				s.log.Error("leaderboard snapshot failed", "err", err)
			}
			snapshot.Reset(time.Until(nextMidnight(s.now())))
		}
	}
}

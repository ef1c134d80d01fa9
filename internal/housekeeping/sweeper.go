package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
)

const sweepTimeout = 2 * time.Minute

// Sweeper purges refresh records that are both revoked and expired, once
// they are past the retention window. Live records are never touched, so
// the sweep runs safely next to login/refresh traffic.
type Sweeper struct {
	Repo      *repo.GormRepo
	Retention time.Duration
	Log       *slog.Logger

	scheduler *gocron.Scheduler
}

func NewSweeper(r *repo.GormRepo, retention time.Duration, log *slog.Logger) *Sweeper {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweeper{Repo: r, Retention: retention, Log: log}
}

// Start schedules a daily sweep and returns immediately. A scheduling
// failure is surfaced in the logs; silently running without the purge
// would let terminal records pile up unnoticed.
func (s *Sweeper) Start() error {
	s.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := s.scheduler.Every(1).Day().Do(s.sweep); err != nil {
		s.Log.Error("sweep_schedule_failed", "component", "housekeeping", "error", err)
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	before := time.Now().Add(-s.Retention)
	purged, err := s.Repo.PurgeExpiredRevoked(ctx, before)
	if err != nil {
		s.Log.Error("purge_failed", "component", "housekeeping", "error", err)
		return
	}
	s.Log.Info("purge_ok", "component", "housekeeping", "purged", purged, "before", before)
}

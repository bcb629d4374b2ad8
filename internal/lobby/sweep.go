package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 60 * time.Second

// Sweeper periodically expires lobbies that outlived the configured maximum
// lifetime. Expiry funnels into the same guarded cleanup path as a manual
// cancel, so a session mid-transition is skipped rather than double
// processed.
type Sweeper struct {
	cron        *cron.Cron
	coordinator *Coordinator
	schedule    string
}

func NewSweeper(coordinator *Coordinator, schedule string) *Sweeper {
	return &Sweeper{
		cron:        cron.New(),
		coordinator: coordinator,
		schedule:    schedule,
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("stale sweep scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	expired := s.coordinator.ExpireStale(ctx)
	if expired > 0 {
		slog.Info("stale sweep expired lobbies", "count", expired)
	}
}

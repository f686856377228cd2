package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/incbuild/internal/logfields"
)

// Periodic reruns a build on a fixed interval using gocron.
type Periodic struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	rebuild   Rebuild
	logger    *slog.Logger
}

// NewPeriodic creates a periodic runner.
func NewPeriodic(interval time.Duration, rebuild Rebuild, logger *slog.Logger) (*Periodic, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("rebuild interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Periodic{scheduler: s, interval: interval, rebuild: rebuild, logger: logger}, nil
}

// Run schedules the rebuild and blocks until ctx is done. A run that is
// still going when the next one is due delays it instead of overlapping.
func (p *Periodic) Run(ctx context.Context) error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() { p.runOnce(ctx) }),
		gocron.WithName("rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = p.scheduler.Shutdown()
		return fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}

	p.logger.Info("Starting periodic rebuilds", slog.Duration("interval", p.interval))
	p.scheduler.Start()
	<-ctx.Done()
	p.logger.Info("Stopping periodic rebuilds")
	return p.scheduler.Shutdown()
}

func (p *Periodic) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := p.rebuild(ctx); err != nil {
		p.logger.Error("Scheduled rebuild failed", logfields.Error(err))
		return
	}
	p.logger.Debug("Scheduled rebuild finished", logfields.Duration(time.Since(start)))
}

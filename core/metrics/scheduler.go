package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const passTag = "graph-metrics-pass"

// Scheduler runs the metrics pass at a regular interval
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    *Engine
	spaceID   *string
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler for the given engine.
// A nil spaceID recomputes all spaces.
func NewScheduler(engine *Engine, spaceID *string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		engine:    engine,
		spaceID:   spaceID,
		logger:    engine.logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the pass every interval, starting immediately
func (s *Scheduler) Start(interval time.Duration) error {
	_, err := s.scheduler.Every(interval).Tag(passTag).Do(s.runPass)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels a running pass
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) runPass() {
	report, err := s.engine.Run(s.ctx, s.spaceID)
	if err != nil {
		s.logger.Error("Scheduled graph metrics pass failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("Scheduled graph metrics pass done", slog.Int("written", report.Written))
}

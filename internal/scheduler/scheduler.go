package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nightfeed/internal/config"
	"nightfeed/internal/logging"
	"nightfeed/internal/runlog"
	"nightfeed/internal/services"
	"nightfeed/internal/snapshot"
)

// RunFunc attempts a pipeline run for a date. The scheduler never forces.
type RunFunc func(ctx context.Context, date string, force bool) (*runlog.Run, error)

// Scheduler fires once a day at the configured local time. Every trigger
// reduces to "attempt a run for today"; the controller's own guard decides
// whether work actually happens.
type Scheduler struct {
	cfg    *config.Config
	logger *slog.Logger
	run    RunFunc

	hour   int
	minute int
	loc    *time.Location
	now    func() time.Time
}

// New builds a scheduler from the workflow configuration.
func New(cfg *config.Config, logger *slog.Logger, run RunFunc) (*Scheduler, error) {
	hour, minute, err := config.ParseRunTime(cfg.Workflow.RunTime)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "schedule", "parse run_time", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "scheduler")),
		run:    run,
		hour:   hour,
		minute: minute,
		loc:    cfg.Location(),
		now:    time.Now,
	}, nil
}

// NextRun returns the next trigger time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until the context is cancelled, triggering one run attempt per
// day at the configured time.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.NextRun(s.now())
		s.logger.Info("next run scheduled", logging.String("at", next.Format(time.RFC3339)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.trigger(ctx)
	}
}

// TriggerNow attempts a run for today immediately, outside the daily timer.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.trigger(ctx)
}

func (s *Scheduler) trigger(ctx context.Context) {
	date := s.now().In(s.loc).Format(snapshot.DateLayout)
	run, err := s.run(ctx, date, false)
	switch {
	case err == nil:
		s.logger.Info("scheduled run finished",
			logging.String(logging.FieldRunDate, date),
			logging.String("status", string(run.Status)))
	case errors.Is(err, services.ErrRunAlreadyTerminal):
		s.logger.Info("run already terminal, nothing to do",
			logging.String(logging.FieldRunDate, date))
	case errors.Is(err, context.Canceled):
		s.logger.Info("scheduled run cancelled", logging.String(logging.FieldRunDate, date))
	default:
		s.logger.Error("scheduled run failed",
			logging.String(logging.FieldRunDate, date),
			logging.Error(err))
	}
}

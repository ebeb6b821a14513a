package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is a unit of periodic work.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler runs one named job on a fixed interval. The job fires
// once immediately on Start, then on every tick. Each run gets its
// own timeout so a hung run cannot stall the ticker forever.
type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func New(name string, job Job, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("job", name),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.job.Run(runCtx); err != nil {
		s.logger.Error("job run failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("job run completed", "duration", time.Since(start))
}

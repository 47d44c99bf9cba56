// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Job is a named function run on a cron schedule.
type Job struct {
	Name string
	// Spec is a standard 5-field cron expression or a descriptor such as
	// "@every 10m".
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	logger = logger.With(slog.String("component", "cron"))
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers every job and begins the schedule.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(job)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) run(job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Warn("scheduled job failed",
			slog.String("job", job.Name),
			slog.Any("error", err),
		)
		return err
	}
	s.logger.Debug("scheduled job completed",
		slog.String("job", job.Name),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

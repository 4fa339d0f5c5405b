// Package scheduler runs periodic report exports.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"finboard/internal/log"
)

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a standard five-field cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration
	logger  *log.Logger
}

// New validates spec and registers job. Ticks are evaluated in loc.
func New(spec string, loc *time.Location, job Job, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		job:     job,
		timeout: 2 * time.Minute,
		logger:  logger.WithComponent(log.ComponentScheduler),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts new ticks and waits for a running job or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.job(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled job failed", log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled job finished")
}

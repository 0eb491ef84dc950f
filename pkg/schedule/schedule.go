// Package schedule drives the periodic check/update run off the
// settings-file crontab expression, replacing the teacher's bespoke
// time.Ticker loop (pkg/worker.HealthMonitor's monitorLoop) with
// robfig/cron/v3 so standard five-field (and @every/@midnight-style
// descriptor) expressions just work.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner is the single operation the scheduler invokes: the controller's
// check_all entry point. It takes no arguments because a scheduled run
// always checks every enabled host, never a subset.
type Runner func(ctx context.Context)

// Scheduler wraps a cron.Cron configured with one job: the runner, fired
// on the configured expression, in the configured timezone.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New parses expr (a standard five-field cron expression, or one of
// cron's @every/@midnight/@hourly descriptors) in the named location and
// schedules run to fire on it. An empty timezone behaves as UTC.
func New(expr, timezone string, run Runner, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := location(timezone)
	if err != nil {
		return nil, err
	}

	c := cron.New(cron.WithLocation(loc), cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	s := &Scheduler{cron: c, logger: logger}

	if _, err := c.AddFunc(expr, func() {
		s.logger.Info().Str("expr", expr).Msg("scheduled check starting")
		run(context.Background())
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func location(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}

// Start begins firing the scheduled job in the background. Non-blocking;
// call Stop to drain in-flight runs before shutdown.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any in-flight run to return;
// the cron job calls the runner synchronously.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

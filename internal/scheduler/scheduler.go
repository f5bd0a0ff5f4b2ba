// Package scheduler drives the market data jobs off wall-clock time. It polls
// the clock, decides which jobs a minute triggers and dispatches them in job
// number order. Jobs apply their own time gates on top, so a dispatch outside
// a job's window is a cheap no-op.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/stanhq/svcmarket/internal/calendar"
	"github.com/stanhq/svcmarket/internal/config"
	"github.com/stanhq/svcmarket/internal/jobs"
)

// pollInterval is how often the clock is sampled. Sampling faster than once
// a minute means a busy job run cannot make the loop miss a trigger minute.
const pollInterval = 15 * time.Second

// JobRunner dispatches a job by number
type JobRunner interface {
	RunJob(ctx context.Context, number int, force bool) (*jobs.Summary, error)
}

// Scheduler triggers jobs at their configured times
type Scheduler struct {
	runner JobRunner
	cal    *calendar.Calendar
	cfg    config.MarketConfig
	now    func() time.Time
	poll   time.Duration
}

// New creates a scheduler
func New(runner JobRunner, cal *calendar.Calendar, cfg config.MarketConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		cal:    cal,
		cfg:    cfg,
		now:    time.Now,
		poll:   pollInterval,
	}
}

// Run blocks, dispatching jobs until the context is canceled. Each minute is
// processed at most once; job failures are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Scheduler started: reference at %s, opening at %s, closing at %s, tracking every %d min",
		s.cfg.ReferenceRefreshAt, s.cfg.OpeningWindowStart, s.cfg.ClosingWindowStart, s.cfg.TrackingInterval)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var lastMinute string
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			now := s.now()
			minute := now.In(s.cal.Location()).Format("2006-01-02 15:04")
			if minute == lastMinute {
				continue
			}
			lastMinute = minute

			for _, number := range s.dueJobs(now) {
				if _, err := s.runner.RunJob(ctx, number, false); err != nil {
					log.Printf("Job %d failed: %v", number, err)
				}
			}
		}
	}
}

// dueJobs returns the job numbers the given minute triggers, in run order
func (s *Scheduler) dueJobs(t time.Time) []int {
	hhmm := t.In(s.cal.Location()).Format("15:04")

	var due []int
	if hhmm == s.cfg.ReferenceRefreshAt {
		due = append(due, jobs.JobReferenceRefresh)
	}
	if hhmm == s.cfg.OpeningWindowStart {
		due = append(due, jobs.JobOpeningCapture)
	}
	if hhmm == s.cfg.ClosingWindowStart {
		due = append(due, jobs.JobClosingCapture)
	}
	if s.cal.WithinSession(t, s.cfg.SessionOpen, s.cfg.SessionClose) &&
		s.cal.OnInterval(t, s.cfg.TrackingInterval) {
		due = append(due, jobs.JobIntradayCapture)
	}
	return due
}

package checkin

import (
	"context"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// Scheduler is the sole source of time-driven task transitions. It re-scans
// on a fixed interval; submissions do not depend on it for correctness since
// Task.AcceptsSubmissions re-checks the window, so the interval only bounds
// how stale a task's stored status can be.
type Scheduler struct {
	repo     Repository
	logger   core.Logger
	interval time.Duration
}

func NewScheduler(repo Repository, logger core.Logger, conf *core.Config) *Scheduler {
	interval := time.Minute
	if conf != nil && conf.Checkin.SchedulerTickInterval > 0 {
		interval = conf.Checkin.SchedulerTickInterval
	}
	return &Scheduler{repo: repo, logger: logger, interval: interval}
}

// Start runs the scheduler loop until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("check-in scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("check-in scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(NowFunc().UTC())
		}
	}
}

// Tick performs one scan: created tasks whose window has opened are
// activated, active tasks whose window has closed are ended. Both scans are
// idempotent. A failure on one task never aborts the rest of the batch, and
// the store-level transition guard means racing a concurrent cancel or end
// simply skips that task.
func (s *Scheduler) Tick(now time.Time) {
	s.scan(
		func() ([]Task, error) { return s.repo.QueryTasksToActivate(now) },
		StatusCreated, StatusActive,
	)
	s.scan(
		func() ([]Task, error) { return s.repo.QueryTasksToEnd(now) },
		StatusActive, StatusEnded,
	)
}

func (s *Scheduler) scan(query func() ([]Task, error), from, to TaskStatus) {
	tasks, err := query()
	if err != nil {
		s.logger.Error("scheduler: querying tasks", err)
		return
	}
	for _, t := range tasks {
		if _, err := s.repo.TransitionTask(t.ID, from, to); err != nil {
			if err == ErrInvalidTransition {
				// concurrently transitioned by a user action; nothing to do
				continue
			}
			s.logger.Error("scheduler: transitioning task "+t.ID, err)
		}
	}
}

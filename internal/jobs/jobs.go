// Package jobs runs periodic maintenance for the booking core on a gocron
// scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer cancels pending requests whose start date has passed.
type Expirer interface {
	ExpireStalePending(ctx context.Context, now time.Time) (int, error)
}

// Runner owns the scheduler and the jobs registered on it.
type Runner struct {
	sched   gocron.Scheduler
	expirer Expirer
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New registers the stale-pending expiry job to run every interval.  The
// job fires once immediately after Start and never overlaps itself.
func New(expirer Expirer, interval time.Duration, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("jobs: init scheduler: %w", err)
	}
	r := &Runner{sched: s, expirer: expirer, log: log, timeout: time.Minute, now: time.Now}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.expireStale),
		gocron.WithName("expire-stale-pending"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("jobs: register expiry job: %w", err)
	}
	log.Info("jobs: scheduled", "job", "expire-stale-pending", "interval", interval.String(), "count", len(s.Jobs()))
	return r, nil
}

// Start begins running jobs in the background.
func (r *Runner) Start() { r.sched.Start() }

// Stop waits for running jobs and shuts the scheduler down.
func (r *Runner) Stop() error { return r.sched.Shutdown() }

func (r *Runner) expireStale() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.expirer.ExpireStalePending(ctx, r.now())
	if err != nil {
		r.log.Error("jobs: expire stale pending failed", "err", err, "expired", n)
		return
	}
	if n > 0 {
		r.log.Info("jobs: expired stale pending bookings", "expired", n)
	}
}

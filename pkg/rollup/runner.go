package rollup

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Job is an idempotent aggregation job. The runner keys executions by
// (Type, windowStart), so the trigger source is interchangeable: cron tick,
// manual backfill call, or an external queue.
type Job interface {
	Type() string
	Run(ctx context.Context, w Window) (accounts int, err error)
}

// Runner executes jobs and collapses concurrent triggers for the same window
// into a single run. Jobs are idempotent, so the skipped caller loses nothing.
type Runner struct {
	logger   *zap.Logger
	inFlight *xsync.Map[string, struct{}]
}

// NewRunner creates a runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:   logger,
		inFlight: xsync.NewMap[string, struct{}](),
	}
}

// Execute runs the job for the window unless the same (jobType, windowStart)
// is already running. Returns the number of accounts processed.
func (r *Runner) Execute(ctx context.Context, job Job, w Window) (int, error) {
	key := fmt.Sprintf("%s:%d", job.Type(), w.Start.Unix())
	if _, loaded := r.inFlight.LoadOrStore(key, struct{}{}); loaded {
		r.logger.Info("Rollup window already running, skipping",
			zap.String("job", job.Type()),
			zap.String("window", w.String()))
		return 0, nil
	}
	defer r.inFlight.Delete(key)

	accounts, err := job.Run(ctx, w)
	if err != nil {
		r.logger.Error("Rollup job failed",
			zap.String("job", job.Type()),
			zap.String("window", w.String()),
			zap.Error(err))
		return 0, err
	}
	return accounts, nil
}

// HourlyJob adapts the aggregator's hourly pass to the Job interface.
type HourlyJob struct{ Aggregator *Aggregator }

func (j HourlyJob) Type() string { return "rollup_hour" }

func (j HourlyJob) Run(ctx context.Context, w Window) (int, error) {
	return j.Aggregator.RunHourly(ctx, w)
}

// DailyJob adapts the aggregator's daily pass to the Job interface.
type DailyJob struct{ Aggregator *Aggregator }

func (j DailyJob) Type() string { return "rollup_day" }

func (j DailyJob) Run(ctx context.Context, w Window) (int, error) {
	return j.Aggregator.RunDaily(ctx, w)
}

// Package scheduler runs the projection on a cron schedule and publishes
// each result.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/model"
	"github.com/cleared-dev/forecast/internal/publish"
)

// DefaultSchedule runs once an hour.
const DefaultSchedule = "@hourly"

// Projector produces a prediction for a target date.
type Projector interface {
	Project(ctx context.Context, target time.Time) (model.Prediction, error)
}

// TargetFunc picks the date to forecast for a run starting at now.
type TargetFunc func(now time.Time) (time.Time, error)

// Status is the runner state served at /v1/status.
type Status struct {
	StartedAt  time.Time         `json:"started_at"`
	Schedule   string            `json:"schedule"`
	RunCount   int64             `json:"run_count"`
	LastRunAt  time.Time         `json:"last_run_at,omitzero"`
	LastRunID  string            `json:"last_run_id,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	Prediction *model.Prediction `json:"prediction,omitempty"`
}

// Options configures New.
type Options struct {
	Schedule string // cron spec or descriptor, defaults to @hourly
	Target   TargetFunc
	Logger   logrus.FieldLogger // nil discards
	Clock    func() time.Time
}

// Runner triggers projections and hands them to a sink.
type Runner struct {
	projector Projector
	sink      publish.Sink
	target    TargetFunc
	schedule  string
	log       logrus.FieldLogger
	now       func() time.Time

	mu     sync.RWMutex
	status Status
}

// New creates a Runner. sink may be nil when results are only kept in Status.
func New(p Projector, sink publish.Sink, opts Options) *Runner {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if sink == nil {
		sink = publish.Multi(nil)
	}
	return &Runner{
		projector: p,
		sink:      sink,
		target:    opts.Target,
		schedule:  opts.Schedule,
		log:       opts.Logger,
		now:       opts.Clock,
		status: Status{
			StartedAt: opts.Clock(),
			Schedule:  opts.Schedule,
		},
	}
}

// Run performs a first cycle immediately, then one per schedule tick until
// ctx is canceled. A cycle still running when the next tick fires is not
// overlapped; the tick is skipped.
func (r *Runner) Run(ctx context.Context) error {
	logger := cronLogger{r.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(r.schedule, func() { _, _, _ = r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("parsing schedule %q: %w", r.schedule, err)
	}

	_, _, _ = r.RunOnce(ctx)

	c.Start()
	r.log.WithField("schedule", r.schedule).Info("scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info("scheduler stopped")
	return nil
}

// RunOnce projects and publishes one prediction. Failures are logged and
// recorded in Status; a failed projection publishes nothing.
func (r *Runner) RunOnce(ctx context.Context) (string, model.Prediction, error) {
	runID := uuid.NewString()
	start := r.now()
	log := r.log.WithField("run_id", runID)

	p, err := r.cycle(ctx, runID, start, log)
	if err != nil {
		log.WithError(err).Error("run failed, skipping this cycle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.RunCount++
	r.status.LastRunAt = start
	r.status.LastRunID = runID
	if err != nil {
		r.status.LastError = err.Error()
		return runID, model.Prediction{}, err
	}
	r.status.LastError = ""
	r.status.Prediction = &p
	return runID, p, nil
}

func (r *Runner) cycle(ctx context.Context, runID string, now time.Time, log logrus.FieldLogger) (model.Prediction, error) {
	target, err := r.resolveTarget(now)
	if err != nil {
		return model.Prediction{}, err
	}
	log = log.WithField("target_date", target.Format(time.DateOnly))

	p, err := r.projector.Project(ctx, target)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("projecting: %w", err)
	}
	log.WithField("balance", p.Balance.StringFixed(2)).Info("prediction ready")

	if err := r.sink.Publish(ctx, runID, p); err != nil {
		return model.Prediction{}, fmt.Errorf("publishing: %w", err)
	}
	return p, nil
}

func (r *Runner) resolveTarget(now time.Time) (time.Time, error) {
	if r.target == nil {
		return now, nil
	}
	t, err := r.target(now)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolving target date: %w", err)
	}
	return t, nil
}

// Status returns a copy of the current runner state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	if s.Prediction != nil {
		p := *s.Prediction
		s.Prediction = &p
	}
	return s
}

// cronLogger sends cron's own messages to logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

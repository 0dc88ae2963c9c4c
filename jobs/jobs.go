// Package jobs runs periodic planning work on a cron schedule.
//
// The only job today is the morning plan: at the configured time it builds
// the day's recommendation, which the planner publishes to the event bus so
// connected clients receive it without asking.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/pacer/schedule"
)

const defaultTimeout = 30 * time.Second

// Planner is the part of the planner the jobs drive.
type Planner interface {
	Today() time.Time
	DailyRecommendation(ctx context.Context, day time.Time) (*schedule.Recommendation, error)
}

// Config controls the job runner.
type Config struct {
	// DailyPlan is a five-field cron spec or descriptor such as "@daily".
	// Empty disables the job.
	DailyPlan string
	Location  *time.Location
	Timeout   time.Duration
}

// HistoryItem records one job run.
type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Runner owns the cron scheduler.
type Runner struct {
	cfg     Config
	planner Planner
	logger  *slog.Logger
	c       *cron.Cron

	mu      sync.Mutex
	history []HistoryItem
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a usable cron expression.
func ValidateSpec(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return nil
}

// New registers the configured jobs. Call Start to begin running them.
func New(cfg Config, p Planner, logger *slog.Logger) (*Runner, error) {
	if p == nil {
		return nil, errors.New("jobs: planner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	r := &Runner{
		cfg:     cfg,
		planner: p,
		logger:  logger,
		c:       cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location)),
	}
	if cfg.DailyPlan != "" {
		if err := ValidateSpec(cfg.DailyPlan); err != nil {
			return nil, err
		}
		if _, err := r.c.AddFunc(cfg.DailyPlan, func() { r.run("daily_plan", r.DailyPlan) }); err != nil {
			return nil, fmt.Errorf("register daily plan: %w", err)
		}
	}
	return r, nil
}

// Start runs the scheduler in its own goroutine.
func (r *Runner) Start() {
	r.c.Start()
	r.logger.Info("jobs started",
		slog.Int("jobs", len(r.c.Entries())),
		slog.String("tz", r.cfg.Location.String()))
}

// Stop halts the scheduler and waits for running jobs or ctx.
func (r *Runner) Stop(ctx context.Context) error {
	select {
	case <-r.c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or zero if no job is registered.
func (r *Runner) Next() time.Time {
	entries := r.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(r.cfg.Location))
}

// DailyPlan builds today's recommendation.
func (r *Runner) DailyPlan(ctx context.Context) error {
	rec, err := r.planner.DailyRecommendation(ctx, r.planner.Today())
	if err != nil {
		return err
	}
	r.logger.Info("morning plan ready",
		slog.String("date", rec.Date),
		slog.String("workload", string(rec.Workload)),
		slog.Int("slots", len(rec.Timetable)))
	return nil
}

func (r *Runner) run(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	item := HistoryItem{Name: name, Started: start, Duration: time.Since(start), Err: err}
	if err != nil {
		r.logger.Error("job failed", slog.String("job", name), slog.Any("err", err))
	}

	r.mu.Lock()
	r.history = append(r.history, item)
	if len(r.history) > 50 {
		r.history = r.history[len(r.history)-50:]
	}
	r.mu.Unlock()
}

// History returns past runs, oldest first.
func (r *Runner) History() []HistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HistoryItem(nil), r.history...)
}

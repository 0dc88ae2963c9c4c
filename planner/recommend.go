package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/metrics"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/task"
)

// DailyRecommendation plans day from a snapshot of open tasks and the day's
// commitments. It takes no task locks.
func (p *Planner) DailyRecommendation(ctx context.Context, day time.Time) (*schedule.Recommendation, error) {
	if day.IsZero() {
		day = p.Today()
	}
	day = day.In(p.Location())

	open, err := p.tasks.List(ctx, task.OpenFilter())
	if err != nil {
		return nil, err
	}
	intervals, err := p.calendar.IntervalsFor(ctx, day)
	if err != nil {
		return nil, err
	}

	rec := p.scheduler.Recommend(day, open, intervals)
	if skipped := len(intervals) - len(rec.Commitments); skipped > 0 {
		p.logger.Debug("commitments outside the working window skipped",
			slog.String("date", rec.Date), slog.Int("skipped", skipped))
	}
	rec.PaceFactor = p.profile(ctx).Overall

	metrics.RecordRecommendation(string(rec.Workload), rec.AvailableHours)
	p.logger.Info("daily recommendation",
		slog.String("date", rec.Date),
		slog.Int("tasks", len(rec.Allocations)),
		slog.Float64("available_hours", rec.AvailableHours),
		slog.Float64("total_hours", rec.TotalHours),
		slog.String("workload", string(rec.Workload)))
	p.publish(ctx, comms.TopicRecommendationComputed, rec.Date, rec)
	return rec, nil
}

// PaceProfile returns the current learned pace factors.
func (p *Planner) PaceProfile(ctx context.Context) (learning.Profile, error) {
	prof, err := p.learner.Profile(ctx)
	if err != nil {
		return learning.Profile{}, err
	}
	metrics.UpdatePaceFactor(prof.Overall)
	return prof, nil
}

// Insights returns the learning analytics view.
func (p *Planner) Insights(ctx context.Context) (learning.Insights, error) {
	return p.learner.Insights(ctx)
}

// Completions returns the completion records of [from, to).
func (p *Planner) Completions(ctx context.Context, from, to time.Time) ([]learning.Record, error) {
	recs, err := p.learner.Between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []learning.Record{}
	}
	return recs, nil
}

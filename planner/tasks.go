package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/metrics"
	"github.com/GoCodeAlone/pacer/task"
)

// NewTask is the input for CreateTask.
type NewTask struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Deadline    time.Time     `json:"deadline"`
	Priority    task.Priority `json:"priority"`
	Tags        []string      `json:"tags"`
}

// TaskUpdate carries the fields to change; nil fields are left alone.
// EstimatedHours exists only so attempts to change the estimate are
// rejected rather than silently dropped.
type TaskUpdate struct {
	Title          *string        `json:"title,omitempty"`
	Description    *string        `json:"description,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	Priority       *task.Priority `json:"priority,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Status         *task.Status   `json:"status,omitempty"`
	Progress       *float64       `json:"progress,omitempty"`
	ActualHours    *float64       `json:"actual_hours,omitempty"`
	EstimatedHours *float64       `json:"estimated_hours,omitempty"`
}

// Created is the result of CreateTask.
type Created struct {
	Task     *task.Task      `json:"task"`
	Estimate estimate.Result `json:"estimate"`
}

// EstimateTask estimates work without storing anything.
func (p *Planner) EstimateTask(ctx context.Context, req estimate.Request) (estimate.Result, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return estimate.Result{}, fmt.Errorf("%w: title or description is required", task.ErrInvalid)
	}
	return p.estimator.Estimate(ctx, req, p.profile(ctx)), nil
}

// CreateTask estimates and stores a new pending task. The estimate is fixed
// from here on.
func (p *Planner) CreateTask(ctx context.Context, in NewTask) (*Created, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", task.ErrInvalid)
	}
	if in.Deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is required", task.ErrInvalid)
	}
	priority, err := task.ParsePriority(string(in.Priority))
	if err != nil {
		return nil, err
	}

	res := p.estimator.Estimate(ctx, estimate.Request{
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
		Deadline:    in.Deadline,
	}, p.profile(ctx))

	t := &task.Task{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Deadline:       in.Deadline,
		Priority:       priority,
		EstimatedHours: res.Hours,
		Complexity:     res.Complexity,
		Tags:           res.Tags,
		Status:         task.StatusPending,
		PaceFactor:     res.PaceFactor,
		EstimateSource: string(res.Source),
		AIAnalysis:     res.Rationale,
	}
	if _, err := p.tasks.Create(ctx, t); err != nil {
		return nil, err
	}

	metrics.RecordTaskCreated(string(t.Priority), string(t.Complexity))
	p.logger.Info("task created",
		slog.String("task_id", t.ID),
		slog.Float64("estimated_hours", t.EstimatedHours),
		slog.String("complexity", string(t.Complexity)),
		slog.String("source", t.EstimateSource))
	p.publish(ctx, comms.TopicTaskCreated, t.ID, t)
	return &Created{Task: t, Estimate: res}, nil
}

// GetTask returns one task.
func (p *Planner) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return p.tasks.Get(ctx, id)
}

// ListTasks returns tasks matching filter, earliest deadline first.
func (p *Planner) ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	tasks, err := p.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return tasks, nil
}

// UpdateTask applies u to the task. Status only moves forward. Moving to
// completed requires actual hours and records a completion.
func (p *Planner) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*task.Task, error) {
	if u.EstimatedHours != nil {
		return nil, fmt.Errorf("%w: estimated hours are fixed at creation", task.ErrInvalid)
	}

	unlock := p.locks.Lock(id)
	defer unlock()

	cur, err := p.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()

	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Deadline != nil {
		next.Deadline = *u.Deadline
	}
	if u.Priority != nil {
		if next.Priority, err = task.ParsePriority(string(*u.Priority)); err != nil {
			return nil, err
		}
	}
	if u.Tags != nil {
		next.Tags = task.NormalizeTags(u.Tags)
	}
	if u.Progress != nil {
		next.Progress = *u.Progress
	}
	if u.Status != nil {
		if !cur.Status.CanTransition(*u.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", task.ErrInvalidTransition, cur.Status, *u.Status)
		}
		next.Status = *u.Status
	}

	if next.Status == task.StatusCompleted {
		actual := u.ActualHours
		if actual == nil && cur.Status != task.StatusCompleted {
			return nil, fmt.Errorf("%w: actual hours are required to complete a task", learning.ErrInvalidCompletion)
		}
		if actual != nil {
			if err := next.Validate(); err != nil {
				return nil, err
			}
			t, _, err := p.complete(ctx, next, *actual)
			return t, err
		}
	} else if u.ActualHours != nil {
		return nil, fmt.Errorf("%w: actual hours are recorded on completion", task.ErrInvalid)
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := p.tasks.Update(ctx, next); err != nil {
		return nil, err
	}
	p.logger.Debug("task updated", slog.String("task_id", id), slog.String("status", string(next.Status)))
	p.publish(ctx, comms.TopicTaskUpdated, id, next)
	return next, nil
}

// DeleteTask removes a task. Its completion record, if any, stays in the
// learning history.
func (p *Planner) DeleteTask(ctx context.Context, id string) error {
	unlock := p.locks.Lock(id)
	defer unlock()

	if err := p.tasks.Delete(ctx, id); err != nil {
		return err
	}
	p.logger.Info("task deleted", slog.String("task_id", id))
	p.publish(ctx, comms.TopicTaskDeleted, id, nil)
	return nil
}

// RecordCompletion marks the task completed with the hours it actually took
// and feeds the outcome to the learner. Recording again replaces the
// earlier actual hours.
func (p *Planner) RecordCompletion(ctx context.Context, id string, actualHours float64) (learning.Record, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	cur, err := p.tasks.Get(ctx, id)
	if err != nil {
		return learning.Record{}, err
	}
	_, rec, err := p.complete(ctx, cur.Clone(), actualHours)
	return rec, err
}

// complete finishes t, which the caller owns, under the task lock. The
// record is written before the task so an invalid completion leaves the
// task untouched and a failed task write can be retried.
func (p *Planner) complete(ctx context.Context, t *task.Task, actualHours float64) (*task.Task, learning.Record, error) {
	if !(actualHours > 0) || math.IsInf(actualHours, 0) {
		return nil, learning.Record{}, fmt.Errorf("%w: actual hours must be positive", learning.ErrInvalidCompletion)
	}

	now := p.now().UTC()
	t.Status = task.StatusCompleted
	t.ActualHours = &actualHours
	t.CompletedAt = &now
	t.Progress = 1

	rec, err := p.learner.RecordCompletion(ctx, t)
	if err != nil {
		return nil, learning.Record{}, err
	}
	if err := p.tasks.Update(ctx, t); err != nil {
		return nil, learning.Record{}, err
	}

	metrics.RecordCompletion(string(rec.Complexity), rec.AccuracyRatio)
	if prof, err := p.learner.Profile(ctx); err == nil {
		metrics.UpdatePaceFactor(prof.Overall)
	}
	p.logger.Info("task completed",
		slog.String("task_id", t.ID),
		slog.Float64("estimated_hours", rec.EstimatedHours),
		slog.Float64("actual_hours", rec.ActualHours),
		slog.Float64("accuracy_ratio", rec.AccuracyRatio))
	p.publish(ctx, comms.TopicTaskCompleted, t.ID, rec)
	return t, rec, nil
}

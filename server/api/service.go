// Package api defines the REST API handlers and interfaces for the Pacer server.
package api

import (
	"context"
	"io"
	"time"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/planner"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/task"
)

// Service is the interface the API uses to plan work.
// Implemented by *planner.Planner.
type Service interface {
	EstimateTask(ctx context.Context, req estimate.Request) (estimate.Result, error)
	CreateTask(ctx context.Context, in planner.NewTask) (*planner.Created, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error)
	UpdateTask(ctx context.Context, id string, u planner.TaskUpdate) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) error
	RecordCompletion(ctx context.Context, id string, actualHours float64) (learning.Record, error)

	ParseDay(s string) (time.Time, error)
	DailyRecommendation(ctx context.Context, day time.Time) (*schedule.Recommendation, error)
	PaceProfile(ctx context.Context) (learning.Profile, error)
	Insights(ctx context.Context) (learning.Insights, error)
	Completions(ctx context.Context, from, to time.Time) ([]learning.Record, error)

	Commitments(ctx context.Context) ([]calendar.Interval, error)
	AddCommitment(ctx context.Context, iv calendar.Interval) (calendar.Interval, error)
	ImportTeaching(ctx context.Context, r io.Reader) ([]calendar.Interval, error)
	DeleteCommitment(ctx context.Context, id string) error
}

var _ Service = (*planner.Planner)(nil)

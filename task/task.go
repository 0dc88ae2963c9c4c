// Package task defines the task model and persistence for planned work items.
package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no task has the requested ID.
	ErrNotFound = errors.New("task not found")
	// ErrInvalid marks a task or update that fails validation.
	ErrInvalid = errors.New("invalid task")
	// ErrInvalidTransition marks a backward status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether a task in status s may move to next.
// Status only moves forward; staying put is allowed.
func (s Status) CanTransition(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() >= s.rank()
}

// Priority determines scheduling order when deadlines tie.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities; higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParsePriority accepts low, medium or high in any case. Empty means medium.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if p.Rank() == 0 {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalid, s)
	}
	return p, nil
}

// Complexity is the size class of a task.
type Complexity string

const (
	ComplexitySmall  Complexity = "small"
	ComplexityMedium Complexity = "medium"
	ComplexityLarge  Complexity = "large"
)

// Complexities lists the classes from smallest to largest.
var Complexities = []Complexity{ComplexitySmall, ComplexityMedium, ComplexityLarge}

// Valid reports whether c is a known class.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySmall, ComplexityMedium, ComplexityLarge:
		return true
	}
	return false
}

// ParseComplexity accepts small, medium or large in any case.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown complexity %q", ErrInvalid, s)
	}
	return c, nil
}

// Task is a unit of planned work with an immutable estimate.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Deadline       time.Time  `json:"deadline"`
	Priority       Priority   `json:"priority"`
	EstimatedHours float64    `json:"estimated_hours"`
	Complexity     Complexity `json:"complexity"`
	Tags           []string   `json:"tags"`
	Status         Status     `json:"status"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Progress       float64    `json:"progress"`
	PaceFactor     float64    `json:"pace_factor"`
	EstimateSource string     `json:"estimate_source,omitempty"`
	AIAnalysis     string     `json:"ai_analysis,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Open reports whether the task still needs scheduling.
func (t *Task) Open() bool { return t.Status != StatusCompleted }

// RemainingHours is the part of the estimate not yet covered by progress.
func (t *Task) RemainingHours() float64 {
	p := math.Min(math.Max(t.Progress, 0), 1)
	return t.EstimatedHours * (1 - p)
}

// Validate checks the fields every stored task must carry.
func (t *Task) Validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case t.Deadline.IsZero():
		return fmt.Errorf("%w: deadline is required", ErrInvalid)
	case t.Priority.Rank() == 0:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, t.Priority)
	case !t.Complexity.Valid():
		return fmt.Errorf("%w: unknown complexity %q", ErrInvalid, t.Complexity)
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	case !(t.EstimatedHours > 0) || math.IsInf(t.EstimatedHours, 0):
		return fmt.Errorf("%w: estimated hours must be positive", ErrInvalid)
	case t.Progress < 0 || t.Progress > 1:
		return fmt.Errorf("%w: progress must be between 0 and 1", ErrInvalid)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	if t.ActualHours != nil {
		v := *t.ActualHours
		c.ActualHours = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// HasTag reports whether the task carries tag.
func (t *Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, lowercases, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Store persists and retrieves tasks.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(ctx context.Context, t *Task) (string, error)

	// Get retrieves a task by ID.
	Get(ctx context.Context, id string) (*Task, error)

	// Update saves mutable fields of an existing task. The estimate
	// recorded at creation is never rewritten.
	Update(ctx context.Context, t *Task) error

	// List returns tasks matching the given filter.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// Delete removes a task by ID.
	Delete(ctx context.Context, id string) error
}

// Filter controls which tasks are returned by List.
type Filter struct {
	Statuses []Status `json:"statuses,omitempty"`
	Tag      string   `json:"tag,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// OpenFilter selects tasks that still need time.
func OpenFilter() Filter {
	return Filter{Statuses: []Status{StatusPending, StatusInProgress}}
}

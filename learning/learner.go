package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/GoCodeAlone/pacer/task"
)

// ProfileCache holds the most recently computed Profile.
type ProfileCache interface {
	// Get returns the cached profile and whether one was present.
	Get(ctx context.Context) (Profile, bool, error)
	Set(ctx context.Context, p Profile) error
	Invalidate(ctx context.Context) error
}

// MemoryCache is an in-process ProfileCache.
type MemoryCache struct {
	mu      sync.RWMutex
	profile *Profile
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get(context.Context) (Profile, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return Profile{}, false, nil
	}
	return c.profile.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, p Profile) error {
	cp := p.Clone()
	c.mu.Lock()
	c.profile = &cp
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.profile = nil
	c.mu.Unlock()
	return nil
}

// Learner records completions and serves the pace profile.
type Learner struct {
	records RecordStore
	cache   ProfileCache
	logger  *slog.Logger
	now     func() time.Time

	// gen counts record writes. A profile is cached only if no write
	// happened while it was computed.
	mu  sync.Mutex
	gen uint64
}

// NewLearner creates a Learner. A nil cache means an in-memory cache.
func NewLearner(records RecordStore, cache ProfileCache, logger *slog.Logger) *Learner {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{records: records, cache: cache, logger: logger, now: time.Now}
}

// RecordCompletion stores the outcome of a completed task, replacing any
// earlier record for the same task, and invalidates the cached profile.
func (l *Learner) RecordCompletion(ctx context.Context, t *task.Task) (Record, error) {
	if t.Status != task.StatusCompleted {
		return Record{}, fmt.Errorf("%w: task %s is %s", ErrInvalidCompletion, t.ID, t.Status)
	}
	if t.ActualHours == nil || !(*t.ActualHours > 0) || math.IsInf(*t.ActualHours, 0) {
		return Record{}, fmt.Errorf("%w: actual hours must be positive", ErrInvalidCompletion)
	}
	if !(t.EstimatedHours > 0) {
		return Record{}, fmt.Errorf("%w: task %s has no estimate", ErrInvalidCompletion, t.ID)
	}

	completedAt := l.now().UTC()
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UTC()
	}
	r := Record{
		TaskID:         t.ID,
		Title:          t.Title,
		Complexity:     t.Complexity,
		Tags:           task.NormalizeTags(t.Tags),
		EstimatedHours: t.EstimatedHours,
		ActualHours:    *t.ActualHours,
		AccuracyRatio:  *t.ActualHours / t.EstimatedHours,
		CompletedAt:    completedAt,
	}

	if err := l.records.Put(ctx, r); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	l.gen++
	err := l.cache.Invalidate(ctx)
	l.mu.Unlock()
	if err != nil {
		l.logger.Warn("pace profile cache invalidation failed", slog.Any("err", err))
	}
	l.logger.Debug("completion recorded",
		slog.String("task_id", r.TaskID),
		slog.Float64("accuracy_ratio", r.AccuracyRatio))
	return r, nil
}

// Profile returns the current pace profile, computing it on a cache miss.
// The computation runs without holding the lock; completions recorded
// meanwhile keep the result out of the cache.
func (l *Learner) Profile(ctx context.Context) (Profile, error) {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	p, ok, err := l.cache.Get(ctx)
	if err != nil {
		l.logger.Warn("pace profile cache read failed", slog.Any("err", err))
	} else if ok {
		return p, nil
	}

	records, err := l.records.List(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("load completions: %w", err)
	}
	p = ComputeProfile(records)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		l.logger.Debug("pace profile superseded by a newer completion")
		return p, nil
	}
	if err := l.cache.Set(ctx, p); err != nil {
		l.logger.Warn("pace profile cache write failed", slog.Any("err", err))
	}
	return p, nil
}

// Insights returns the analytics view over all completions.
func (l *Learner) Insights(ctx context.Context) (Insights, error) {
	records, err := l.records.List(ctx)
	if err != nil {
		return Insights{}, fmt.Errorf("load completions: %w", err)
	}
	return ComputeInsights(records), nil
}

// Between returns the records completed in [from, to).
func (l *Learner) Between(ctx context.Context, from, to time.Time) ([]Record, error) {
	return l.records.ListBetween(ctx, from, to)
}

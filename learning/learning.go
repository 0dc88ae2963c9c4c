// Package learning turns completed tasks into pace factors. Every completion
// is kept as a Record; the Profile is derived from all records on demand and
// cached until the next completion arrives.
package learning

import (
	"context"
	"errors"
	"maps"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GoCodeAlone/pacer/task"
)

// ErrInvalidCompletion is returned when a task cannot be learned from.
var ErrInvalidCompletion = errors.New("invalid completion")

// Record is the outcome of one completed task.
type Record struct {
	TaskID         string          `json:"task_id"`
	Title          string          `json:"title"`
	Complexity     task.Complexity `json:"complexity"`
	Tags           []string        `json:"tags"`
	EstimatedHours float64         `json:"estimated_hours"`
	ActualHours    float64         `json:"actual_hours"`
	AccuracyRatio  float64         `json:"accuracy_ratio"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// RecordStore persists completion records, one per task.
type RecordStore interface {
	// Put inserts the record or replaces the one stored for the same task.
	Put(ctx context.Context, r Record) error

	// List returns every record, oldest completion first.
	List(ctx context.Context) ([]Record, error)

	// ListBetween returns records completed in [from, to).
	ListBetween(ctx context.Context, from, to time.Time) ([]Record, error)
}

// Basis names which learned factor was applied to an estimate.
type Basis string

const (
	BasisTag        Basis = "tag"
	BasisComplexity Basis = "complexity"
	BasisOverall    Basis = "overall"
)

// Profile is the set of pace factors derived from all records.
// A factor above 1 means work takes longer than estimated.
type Profile struct {
	Overall      float64                     `json:"overall"`
	ByComplexity map[task.Complexity]float64 `json:"by_complexity"`
	ByTag        map[string]float64          `json:"by_tag"`
	Samples      int                         `json:"samples"`
}

// NeutralProfile is the profile of a user with no history.
func NeutralProfile() Profile {
	return Profile{
		Overall:      1.0,
		ByComplexity: map[task.Complexity]float64{},
		ByTag:        map[string]float64{},
	}
}

// FactorFor picks the correction for a new task. Learned tag factors win
// and are averaged when several tags match; otherwise the complexity class
// is used if it has data, and the overall factor if not.
func (p Profile) FactorFor(c task.Complexity, tags []string) (float64, Basis) {
	var matched []float64
	for _, tag := range tags {
		if f, ok := p.ByTag[tag]; ok {
			matched = append(matched, f)
		}
	}
	if len(matched) > 0 {
		return stat.Mean(matched, nil), BasisTag
	}
	if f, ok := p.ByComplexity[c]; ok {
		return f, BasisComplexity
	}
	return p.overall(), BasisOverall
}

func (p Profile) overall() float64 {
	if p.Overall <= 0 || math.IsNaN(p.Overall) {
		return 1.0
	}
	return p.Overall
}

// Clone returns a copy whose maps can be modified independently.
func (p Profile) Clone() Profile {
	c := p
	c.ByComplexity = maps.Clone(p.ByComplexity)
	c.ByTag = maps.Clone(p.ByTag)
	if c.ByComplexity == nil {
		c.ByComplexity = map[task.Complexity]float64{}
	}
	if c.ByTag == nil {
		c.ByTag = map[string]float64{}
	}
	return c
}

// ComputeProfile derives pace factors as the arithmetic mean of accuracy
// ratios, overall and per class and tag. No records yields NeutralProfile.
func ComputeProfile(records []Record) Profile {
	p := NeutralProfile()
	if len(records) == 0 {
		return p
	}

	all := make([]float64, 0, len(records))
	byComplexity := map[task.Complexity][]float64{}
	byTag := map[string][]float64{}
	for _, r := range records {
		all = append(all, r.AccuracyRatio)
		byComplexity[r.Complexity] = append(byComplexity[r.Complexity], r.AccuracyRatio)
		for _, tag := range r.Tags {
			byTag[tag] = append(byTag[tag], r.AccuracyRatio)
		}
	}

	p.Overall = stat.Mean(all, nil)
	p.Samples = len(records)
	for c, ratios := range byComplexity {
		p.ByComplexity[c] = stat.Mean(ratios, nil)
	}
	for tag, ratios := range byTag {
		p.ByTag[tag] = stat.Mean(ratios, nil)
	}
	return p
}

// TrendPoint is one entry of the accuracy trend.
type TrendPoint struct {
	TaskID    string  `json:"task_id"`
	Title     string  `json:"task_title"`
	Estimated float64 `json:"estimated"`
	Actual    float64 `json:"actual"`
	Accuracy  float64 `json:"accuracy"`
}

// Insights is the analytics view over all completions.
type Insights struct {
	TotalCompletions  int                         `json:"total_completed_tasks"`
	OverallFactor     float64                     `json:"overall_pace_factor"`
	ComplexityFactors map[task.Complexity]float64 `json:"complexity_insights"`
	TagFactors        map[string]float64          `json:"tag_performance"`
	RecentCompletions []Record                    `json:"recent_completions"`
	AccuracyTrend     []TrendPoint                `json:"accuracy_trend"`
}

const (
	recentCompletions = 5
	trendLength       = 10
)

// ComputeInsights builds the analytics view. Factors are rounded to two
// places; recent entries are newest first.
func ComputeInsights(records []Record) Insights {
	p := ComputeProfile(records)
	in := Insights{
		TotalCompletions:  len(records),
		OverallFactor:     round2(p.Overall),
		ComplexityFactors: make(map[task.Complexity]float64, len(p.ByComplexity)),
		TagFactors:        make(map[string]float64, len(p.ByTag)),
		RecentCompletions: []Record{},
		AccuracyTrend:     []TrendPoint{},
	}
	for c, f := range p.ByComplexity {
		in.ComplexityFactors[c] = round2(f)
	}
	for tag, f := range p.ByTag {
		in.TagFactors[tag] = round2(f)
	}

	recent := append([]Record(nil), records...)
	sort.SliceStable(recent, func(i, j int) bool {
		if !recent[i].CompletedAt.Equal(recent[j].CompletedAt) {
			return recent[i].CompletedAt.After(recent[j].CompletedAt)
		}
		return recent[i].TaskID < recent[j].TaskID
	})
	if len(recent) > trendLength {
		recent = recent[:trendLength]
	}
	for i, r := range recent {
		if i < recentCompletions {
			in.RecentCompletions = append(in.RecentCompletions, r)
		}
		in.AccuracyTrend = append(in.AccuracyTrend, TrendPoint{
			TaskID:    r.TaskID,
			Title:     r.Title,
			Estimated: r.EstimatedHours,
			Actual:    r.ActualHours,
			Accuracy:  round2(r.AccuracyRatio),
		})
	}
	return in
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package estimate

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/provider"
	"github.com/GoCodeAlone/pacer/task"
)

type fakeSuggester struct {
	suggestion *Suggestion
	err        error
	block      bool
	calls      int
}

func (f *fakeSuggester) Suggest(ctx context.Context, _ Request) (*Suggestion, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.suggestion, f.err
}

func TestEstimate_UsesSuggestion(t *testing.T) {
	s := &fakeSuggester{suggestion: &Suggestion{
		Hours: 3, Complexity: "Medium", Tags: []string{"Teaching"}, Rationale: "Forty exams at five minutes each.",
	}}
	e := New(s, DefaultConfig(), nil)

	res := e.Estimate(context.Background(), Request{Title: "Grade exams", Tags: []string{"urgent"}}, learning.NeutralProfile())
	if res.Source != SourceAI || res.Degraded != nil {
		t.Fatalf("source = %s degraded = %+v, want ai without degradation", res.Source, res.Degraded)
	}
	if res.Hours != 3 || res.BaseHours != 3 || res.Complexity != task.ComplexityMedium {
		t.Errorf("result = %+v", res)
	}
	if want := []string{"teaching", "urgent"}; !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("Tags = %v, want %v", res.Tags, want)
	}
	if res.Rationale != "Forty exams at five minutes each." {
		t.Errorf("Rationale = %q", res.Rationale)
	}
}

func TestEstimate_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		s      *fakeSuggester
		reason string
	}{
		{"error", &fakeSuggester{err: errors.New("connection refused")}, ReasonUnavailable},
		{"api rate limit", &fakeSuggester{err: &provider.APIError{Provider: "openai", StatusCode: 429}}, ReasonRateLimited},
		{"zero hours", &fakeSuggester{suggestion: &Suggestion{Hours: 0, Complexity: "small"}}, ReasonUnusable},
		{"negative hours", &fakeSuggester{suggestion: &Suggestion{Hours: -2, Complexity: "small"}}, ReasonUnusable},
		{"infinite hours", &fakeSuggester{suggestion: &Suggestion{Hours: math.Inf(1), Complexity: "small"}}, ReasonUnusable},
		{"unknown complexity", &fakeSuggester{suggestion: &Suggestion{Hours: 2, Complexity: "epic"}}, ReasonUnusable},
		{"nil suggestion", &fakeSuggester{}, ReasonUnusable},
		{"timeout", &fakeSuggester{block: true}, ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Timeout = 20 * time.Millisecond
			e := New(tt.s, cfg, nil)

			res := e.Estimate(context.Background(), Request{Title: "Email the dean"}, learning.NeutralProfile())
			if res.Source != SourceRules {
				t.Errorf("Source = %s, want rules", res.Source)
			}
			if res.Degraded == nil || res.Degraded.Reason != tt.reason {
				t.Fatalf("Degraded = %+v, want reason %s", res.Degraded, tt.reason)
			}
			if res.Complexity != task.ComplexitySmall || res.Hours != 1 {
				t.Errorf("fallback = %s/%v, want small/1", res.Complexity, res.Hours)
			}
		})
	}
}

func TestEstimate_NilSuggesterIsNotDegraded(t *testing.T) {
	e := New(nil, DefaultConfig(), nil)
	res := e.Estimate(context.Background(), Request{Title: "Write grant report"}, learning.NeutralProfile())
	if res.Degraded != nil {
		t.Errorf("Degraded = %+v, want nil", res.Degraded)
	}
	if res.Source != SourceRules || res.Complexity != task.ComplexityMedium || res.Hours != 4 {
		t.Errorf("result = %+v", res)
	}
}

func TestEstimate_LocalRateLimit(t *testing.T) {
	s := &fakeSuggester{suggestion: &Suggestion{Hours: 2, Complexity: "small"}}
	cfg := DefaultConfig()
	cfg.RatePerMinute = 1
	e := New(s, cfg, nil)

	first := e.Estimate(context.Background(), Request{Title: "a"}, learning.NeutralProfile())
	second := e.Estimate(context.Background(), Request{Title: "b"}, learning.NeutralProfile())

	if first.Source != SourceAI {
		t.Errorf("first source = %s, want ai", first.Source)
	}
	if second.Degraded == nil || second.Degraded.Reason != ReasonRateLimited {
		t.Errorf("second degraded = %+v, want rate_limited", second.Degraded)
	}
	if s.calls != 1 {
		t.Errorf("suggester calls = %d, want 1", s.calls)
	}
}

func TestEstimate_CanceledParent(t *testing.T) {
	e := New(&fakeSuggester{block: true}, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Estimate(ctx, Request{Title: "Check mail"}, learning.NeutralProfile())
	if res.Degraded == nil || res.Degraded.Reason != ReasonCanceled {
		t.Errorf("Degraded = %+v, want canceled", res.Degraded)
	}
	if res.Hours <= 0 {
		t.Errorf("Hours = %v, want positive", res.Hours)
	}
}

func TestEstimate_AppliesPaceFactor(t *testing.T) {
	profile := learning.Profile{
		Overall:      1.1,
		ByComplexity: map[task.Complexity]float64{task.ComplexityMedium: 1.5},
		ByTag:        map[string]float64{"teaching": 1.25, "admin": 0.75},
	}
	e := New(nil, DefaultConfig(), nil)

	tagged := e.Estimate(context.Background(), Request{Title: "Review lesson plans", Tags: []string{"admin"}}, profile)
	if tagged.PaceBasis != learning.BasisTag || tagged.PaceFactor != 1.0 {
		t.Errorf("tag basis = %s factor = %v, want tag/1.0", tagged.PaceBasis, tagged.PaceFactor)
	}
	if tagged.Hours != 4 {
		t.Errorf("tagged hours = %v, want 4", tagged.Hours)
	}

	byClass := e.Estimate(context.Background(), Request{Title: "Organize bookshelf"}, profile)
	if byClass.PaceBasis != learning.BasisComplexity || byClass.Hours != 6 {
		t.Errorf("complexity basis = %s hours = %v, want complexity/6", byClass.PaceBasis, byClass.Hours)
	}

	overall := e.Estimate(context.Background(), Request{Title: "Call plumber"}, profile)
	if overall.PaceBasis != learning.BasisOverall || overall.Hours != 1.1 {
		t.Errorf("overall basis = %s hours = %v, want overall/1.1", overall.PaceBasis, overall.Hours)
	}
	if overall.BaseHours != 1 {
		t.Errorf("BaseHours = %v, want uncalibrated 1", overall.BaseHours)
	}
}

func TestEstimate_FallbackTagOnlyWhenUntagged(t *testing.T) {
	profile := learning.Profile{
		Overall: 1,
		ByTag:   map[string]float64{"teaching": 2.0, "general": 0.5},
	}
	e := New(nil, DefaultConfig(), nil)

	hinted := e.Estimate(context.Background(), Request{Title: "Fix the bike", Tags: []string{"teaching"}}, profile)
	if want := []string{"teaching"}; !reflect.DeepEqual(hinted.Tags, want) {
		t.Errorf("Tags = %v, want %v", hinted.Tags, want)
	}
	if hinted.PaceBasis != learning.BasisTag || hinted.PaceFactor != 2.0 {
		t.Errorf("basis = %s factor = %v, want tag/2.0", hinted.PaceBasis, hinted.PaceFactor)
	}

	bare := e.Estimate(context.Background(), Request{Title: "Fix the bike"}, profile)
	if want := []string{"general"}; !reflect.DeepEqual(bare.Tags, want) {
		t.Errorf("Tags = %v, want %v", bare.Tags, want)
	}
	if bare.PaceFactor != 0.5 {
		t.Errorf("factor = %v, want 0.5", bare.PaceFactor)
	}
}

func TestEstimate_RoundsAndFloors(t *testing.T) {
	s := &fakeSuggester{suggestion: &Suggestion{Hours: 0.001, Complexity: "small"}}
	e := New(s, DefaultConfig(), nil)

	res := e.Estimate(context.Background(), Request{Title: "tiny"}, learning.NeutralProfile())
	if res.Hours != minHours {
		t.Errorf("Hours = %v, want %v", res.Hours, minHours)
	}

	s.suggestion = &Suggestion{Hours: 2.3333, Complexity: "small"}
	res = e.Estimate(context.Background(), Request{Title: "tiny"}, learning.NeutralProfile())
	if res.Hours != 2.33 {
		t.Errorf("Hours = %v, want 2.33", res.Hours)
	}
}

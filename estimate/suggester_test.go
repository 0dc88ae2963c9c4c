package estimate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/provider/mock"
	"github.com/GoCodeAlone/pacer/task"
)

func TestProviderSuggester_ParsesEmbeddedJSON(t *testing.T) {
	p := mock.New(`Here is my estimate: {"estimated_hours": 5.5, "complexity": "Large", ` +
		`"suggested_tags": ["research"], "breakdown": "Reading plus writing."} Good luck!`)
	s := NewProviderSuggester(p, "")
	s.now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }

	got, err := s.Suggest(context.Background(), Request{
		Title:       "Literature review",
		Description: "Survey recent papers",
		Deadline:    time.Date(2026, 10, 8, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got.Hours != 5.5 || got.Complexity != task.ComplexityLarge || got.Rationale != "Reading plus writing." {
		t.Errorf("suggestion = %+v", got)
	}

	calls := p.Calls()
	if len(calls) != 1 || len(calls[0]) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	prompt := calls[0][1].Content
	for _, want := range []string{"Literature review", "Survey recent papers", "in 7 days", "08:00-16:00"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestProviderSuggester_NoJSON(t *testing.T) {
	s := NewProviderSuggester(mock.New("I cannot estimate that."), "")
	if _, err := s.Suggest(context.Background(), Request{Title: "x"}); !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestProviderSuggester_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	s := NewProviderSuggester(mock.New().WithError(boom), "")
	if _, err := s.Suggest(context.Background(), Request{Title: "x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestEstimator_WithSlowProviderTimesOut(t *testing.T) {
	s := NewProviderSuggester(mock.New().WithDelay(time.Second), "")
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	e := New(s, cfg, nil)

	res := e.Estimate(context.Background(), Request{Title: "Plan the semester"}, learning.NeutralProfile())
	if res.Degraded == nil || res.Degraded.Reason != ReasonTimeout {
		t.Fatalf("Degraded = %+v, want timeout", res.Degraded)
	}
	if res.Complexity != task.ComplexityLarge {
		t.Errorf("Complexity = %s, want large from rules", res.Complexity)
	}
}

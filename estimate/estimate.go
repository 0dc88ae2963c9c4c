// Package estimate produces calibrated duration estimates for new tasks.
//
// An Estimator asks an optional Suggester (normally a language model) for a
// base estimate and falls back to keyword rules when the suggester is
// missing, slow, rate limited or returns something unusable. The base is
// then multiplied by the learned pace factor. Estimate never fails; a
// fallback is reported through Result.Degraded.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/metrics"
	"github.com/GoCodeAlone/pacer/provider"
	"github.com/GoCodeAlone/pacer/task"
)

// Source names where the base estimate came from.
type Source string

const (
	SourceAI    Source = "ai"
	SourceRules Source = "rules"
)

// Reasons reported in Degraded.
const (
	ReasonTimeout     = "timeout"
	ReasonRateLimited = "rate_limited"
	ReasonUnavailable = "unavailable"
	ReasonUnusable    = "unusable_suggestion"
	ReasonCanceled    = "canceled"
)

const minHours = 0.01

// Request describes the task to estimate.
type Request struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Deadline    time.Time `json:"deadline,omitempty"`
}

// Suggestion is a structured estimate from an external estimator.
type Suggestion struct {
	Hours      float64
	Complexity task.Complexity
	Tags       []string
	Rationale  string
}

// Suggester is an external estimator.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (*Suggestion, error)
}

// Degraded explains why the rule-based fallback was used.
type Degraded struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Result is a calibrated estimate.
type Result struct {
	Hours      float64         `json:"estimated_hours"`
	BaseHours  float64         `json:"base_hours"`
	Complexity task.Complexity `json:"complexity"`
	Tags       []string        `json:"tags"`
	Rationale  string          `json:"rationale"`
	Source     Source          `json:"source"`
	PaceFactor float64         `json:"pace_factor"`
	PaceBasis  learning.Basis  `json:"pace_basis"`
	Degraded   *Degraded       `json:"degraded,omitempty"`
}

// Config tunes the estimator.
type Config struct {
	// Timeout bounds a single Suggest call.
	Timeout time.Duration
	// RatePerMinute caps Suggest calls; zero means unlimited.
	RatePerMinute int
	Tiers         Tiers
}

// DefaultConfig returns the built-in estimator settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		RatePerMinute: 30,
		Tiers:         DefaultTiers(),
	}
}

// Estimator combines a Suggester, rule-based fallback and pace calibration.
type Estimator struct {
	suggester Suggester
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates an Estimator. A nil suggester means rules only.
func New(s Suggester, cfg Config, logger *slog.Logger) *Estimator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	cfg.Tiers = cfg.Tiers.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Estimator{suggester: s, cfg: cfg, logger: logger}
	if n := cfg.RatePerMinute; n > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return e
}

// Estimate returns a calibrated estimate for req using the given profile.
func (e *Estimator) Estimate(ctx context.Context, req Request, profile learning.Profile) Result {
	res, degraded := e.base(ctx, req)
	if degraded != nil {
		res = ruleEstimate(req, e.cfg.Tiers)
		res.Degraded = degraded
		metrics.RecordEstimateDegraded(degraded.Reason)
		e.logger.Warn("estimator degraded to rules",
			slog.String("reason", degraded.Reason),
			slog.String("detail", degraded.Detail),
			slog.String("title", req.Title))
	}
	res.Tags = task.NormalizeTags(append(append([]string(nil), req.Tags...), res.Tags...))
	if len(res.Tags) == 0 {
		res.Tags = []string{fallbackTag}
	}

	factor, basis := profile.FactorFor(res.Complexity, res.Tags)
	res.PaceFactor = factor
	res.PaceBasis = basis
	res.Hours = roundHours(res.BaseHours * factor)
	if factor != 1 {
		res.Rationale = fmt.Sprintf("%s Adjusted by %s pace factor %.2f.", res.Rationale, basis, factor)
	}

	metrics.RecordEstimate(string(res.Source))
	return res
}

// base asks the suggester. A non-nil Degraded means the caller must fall back.
func (e *Estimator) base(ctx context.Context, req Request) (Result, *Degraded) {
	if e.suggester == nil {
		return ruleEstimate(req, e.cfg.Tiers), nil
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return Result{}, &Degraded{Reason: ReasonRateLimited, Detail: "local estimator rate limit reached"}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	s, err := e.suggester.Suggest(callCtx, req)
	metrics.RecordEstimatorCall(time.Since(start))
	if err != nil {
		return Result{}, classify(ctx, err)
	}
	if err := usable(s); err != nil {
		return Result{}, &Degraded{Reason: ReasonUnusable, Detail: err.Error()}
	}

	complexity, _ := task.ParseComplexity(string(s.Complexity))
	rationale := strings.TrimSpace(s.Rationale)
	if rationale == "" {
		rationale = fmt.Sprintf("Suggested %s complexity task requiring %.1f hours.", complexity, s.Hours)
	}
	tags := s.Tags
	if len(task.NormalizeTags(tags)) == 0 {
		tags = deriveTags(foldText(req.Title, req.Description))
	}
	return Result{
		BaseHours:  s.Hours,
		Complexity: complexity,
		Tags:       tags,
		Rationale:  rationale,
		Source:     SourceAI,
	}, nil
}

func usable(s *Suggestion) error {
	if s == nil {
		return errors.New("empty suggestion")
	}
	if !(s.Hours > 0) || math.IsInf(s.Hours, 0) {
		return fmt.Errorf("non-positive hours %v", s.Hours)
	}
	if _, err := task.ParseComplexity(string(s.Complexity)); err != nil {
		return fmt.Errorf("unrecognized complexity %q", s.Complexity)
	}
	return nil
}

func classify(parent context.Context, err error) *Degraded {
	var apiErr *provider.APIError
	switch {
	case parent.Err() != nil:
		return &Degraded{Reason: ReasonCanceled, Detail: parent.Err().Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &Degraded{Reason: ReasonTimeout, Detail: err.Error()}
	case errors.As(err, &apiErr) && apiErr.RateLimited():
		return &Degraded{Reason: ReasonRateLimited, Detail: err.Error()}
	default:
		return &Degraded{Reason: ReasonUnavailable, Detail: err.Error()}
	}
}

func roundHours(h float64) float64 {
	h = math.Round(h*100) / 100
	if h < minHours {
		return minHours
	}
	return h
}

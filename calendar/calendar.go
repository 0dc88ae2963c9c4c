// Package calendar keeps the fixed commitments that block working time:
// teaching slots, standing breaks and one-off appointments.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidInterval marks a commitment that fails validation.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrNotFound is returned when no commitment has the requested ID.
	ErrNotFound = errors.New("commitment not found")
)

// DateLayout is the civil date format used for one-off commitments.
const DateLayout = "2006-01-02"

// Clock is a time of day in minutes since midnight.
type Clock int

// MinutesPerDay is the largest valid Clock, written "24:00".
const MinutesPerDay = 24 * 60

// ParseClock parses "HH:MM" in 24-hour form; "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidInterval, s)
	}
	c := Clock(h*60 + m)
	if h < 0 || m < 0 || m > 59 || c > MinutesPerDay {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidInterval, s)
	}
	return c, nil
}

// MustClock is ParseClock for constants; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the wall-clock instant at c on day's calendar date in day's
// location. 24:00 is midnight of the next day.
func (c Clock) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Kind classifies a commitment.
type Kind string

const (
	KindBreak    Kind = "break"
	KindTeaching Kind = "teaching"
	KindWork     Kind = "work"
	KindOther    Kind = "other"
)

func (k Kind) valid() bool {
	switch k {
	case KindBreak, KindTeaching, KindWork, KindOther:
		return true
	}
	return false
}

// Interval is a fixed commitment. It recurs weekly when Weekday is set,
// happens once when Date is set, and recurs daily when neither is.
type Interval struct {
	ID      string `json:"id" yaml:"id,omitempty"`
	Weekday string `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Start   Clock  `json:"start" yaml:"start"`
	End     Clock  `json:"end" yaml:"end"`
	Label   string `json:"label" yaml:"label"`
	Kind    Kind   `json:"kind" yaml:"kind"`
}

// Minutes is the length of the interval.
func (iv Interval) Minutes() int { return int(iv.End - iv.Start) }

// Normalize lowercases the weekday and fills in the default kind.
func (iv *Interval) Normalize() {
	iv.Weekday = strings.ToLower(strings.TrimSpace(iv.Weekday))
	iv.Date = strings.TrimSpace(iv.Date)
	iv.Kind = Kind(strings.ToLower(strings.TrimSpace(string(iv.Kind))))
	if iv.Kind == "" {
		iv.Kind = KindOther
	}
}

// Validate checks a normalized interval.
func (iv Interval) Validate() error {
	if iv.Weekday != "" && iv.Date != "" {
		return fmt.Errorf("%w: weekday and date are mutually exclusive", ErrInvalidInterval)
	}
	if iv.Weekday != "" {
		if _, err := ParseWeekday(iv.Weekday); err != nil {
			return err
		}
	}
	if iv.Date != "" {
		if _, err := time.Parse(DateLayout, iv.Date); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInterval, iv.Date)
		}
	}
	if iv.Start < 0 || iv.End > MinutesPerDay || iv.End <= iv.Start {
		return fmt.Errorf("%w: %s-%s is not a forward interval", ErrInvalidInterval, iv.Start, iv.End)
	}
	if !iv.Kind.valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInterval, iv.Kind)
	}
	return nil
}

// AppliesOn reports whether the commitment occupies time on day.
func (iv Interval) AppliesOn(day time.Time) bool {
	switch {
	case iv.Date != "":
		return iv.Date == day.Format(DateLayout)
	case iv.Weekday != "":
		wd, err := ParseWeekday(iv.Weekday)
		return err == nil && wd == day.Weekday()
	default:
		return true
	}
}

// ParseWeekday accepts English day names and three-letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidInterval, s)
}

// Store persists commitments.
type Store interface {
	// Add validates and stores iv, assigning an ID when empty.
	Add(ctx context.Context, iv Interval) (Interval, error)
	List(ctx context.Context) ([]Interval, error)
	Delete(ctx context.Context, id string) error
}

// Calendar answers which commitments occupy a given day.
type Calendar struct {
	store    Store
	standing []Interval
}

// New creates a Calendar over store plus standing intervals from
// configuration, such as a daily lunch break. Standing intervals are not
// persisted and cannot be deleted through the store.
func New(store Store, standing []Interval) *Calendar {
	return &Calendar{store: store, standing: append([]Interval(nil), standing...)}
}

// Store returns the underlying commitment store.
func (c *Calendar) Store() Store { return c.store }

// Standing returns the configured standing intervals.
func (c *Calendar) Standing() []Interval { return append([]Interval(nil), c.standing...) }

// IntervalsFor returns the commitments active on day, ordered by start.
func (c *Calendar) IntervalsFor(ctx context.Context, day time.Time) ([]Interval, error) {
	stored, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	var out []Interval
	for _, iv := range append(c.Standing(), stored...) {
		if iv.AppliesOn(day) {
			out = append(out, iv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].End != out[j].End {
			return out[i].End < out[j].End
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

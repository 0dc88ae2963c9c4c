// Package schedule turns open tasks and fixed commitments into a day plan.
//
// The scheduler is a pure function of its inputs: it never reads the clock,
// uses no randomness and orders every output explicitly. All arithmetic is
// done in whole minutes.
package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/task"
)

// Workload summarizes how full a day is.
type Workload string

const (
	WorkloadLight      Workload = "light"
	WorkloadModerate   Workload = "moderate"
	WorkloadHeavy      Workload = "heavy"
	WorkloadOverloaded Workload = "overloaded"
)

// Classify maps a demand/capacity ratio onto a workload:
// below 0.5 light, below 0.8 moderate, up to 1.0 heavy, above overloaded.
func Classify(ratio float64) Workload {
	switch {
	case ratio < 0.5:
		return WorkloadLight
	case ratio < 0.8:
		return WorkloadModerate
	case ratio <= 1.0:
		return WorkloadHeavy
	default:
		return WorkloadOverloaded
	}
}

// Config is the scheduler's working window and per-task ceiling.
type Config struct {
	DayStart calendar.Clock
	DayEnd   calendar.Clock
	// TaskCeiling is the largest fraction of the day's available time one
	// task may take while other tasks still need time.
	TaskCeiling float64
	// Location is the time zone the day is planned in; nil means the
	// location of the date passed to Recommend.
	Location *time.Location
}

// DefaultConfig is an 08:00-16:00 day with a 0.7 ceiling.
func DefaultConfig() Config {
	return Config{
		DayStart:    calendar.MustClock("08:00"),
		DayEnd:      calendar.MustClock("16:00"),
		TaskCeiling: 0.7,
	}
}

// Validate checks that the window is forward and the ceiling is in (0, 1].
func (c Config) Validate() error {
	if c.DayStart < 0 || c.DayEnd > calendar.MinutesPerDay || c.DayEnd <= c.DayStart {
		return fmt.Errorf("working window %s-%s is empty", c.DayStart, c.DayEnd)
	}
	if !(c.TaskCeiling > 0) || c.TaskCeiling > 1 {
		return fmt.Errorf("task ceiling %v must be in (0, 1]", c.TaskCeiling)
	}
	return nil
}

// Allocation is the time given to one task today.
type Allocation struct {
	TaskID         string          `json:"task_id"`
	Title          string          `json:"title"`
	Priority       task.Priority   `json:"priority"`
	Complexity     task.Complexity `json:"complexity"`
	Deadline       time.Time       `json:"deadline"`
	DaysRemaining  int             `json:"days_remaining"`
	RemainingHours float64         `json:"remaining_hours"`
	AllocatedHours float64         `json:"allocated_hours"`

	minutes  int
	estimate float64
}

// Slot is one block of the timetable.
type Slot struct {
	Start      time.Time       `json:"start_time"`
	End        time.Time       `json:"end_time"`
	TaskID     string          `json:"task_id"`
	Title      string          `json:"title"`
	Priority   task.Priority   `json:"priority"`
	Complexity task.Complexity `json:"complexity"`
}

// Hours is the slot length.
func (s Slot) Hours() float64 { return s.End.Sub(s.Start).Hours() }

// Recommendation is the plan for one day.
type Recommendation struct {
	Date           string              `json:"date"`
	AvailableHours float64             `json:"available_hours"`
	TotalHours     float64             `json:"total_hours"`
	RequiredHours  float64             `json:"required_hours"`
	Ratio          float64             `json:"ratio"`
	Workload       Workload            `json:"workload_status"`
	Allocations    []Allocation        `json:"allocations"`
	Timetable      []Slot              `json:"timetable"`
	Commitments    []calendar.Interval `json:"commitments"`
	PaceFactor     float64             `json:"pace_factor,omitempty"`
}

// Scheduler builds daily recommendations.
type Scheduler struct {
	cfg Config
}

// New creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg}, nil
}

// Config returns the scheduler configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// span is a half-open range of minutes since midnight.
type span struct{ start, end int }

// Recommend plans the calendar day containing today. Completed tasks are
// ignored; intervals that are empty, backwards or outside the working
// window are skipped.
func (s *Scheduler) Recommend(today time.Time, tasks []*task.Task, intervals []calendar.Interval) *Recommendation {
	loc := s.cfg.Location
	if loc == nil {
		loc = today.Location()
	}
	day := today.In(loc)
	window := span{int(s.cfg.DayStart), int(s.cfg.DayEnd)}

	blocked, used := s.blocked(window, intervals)
	free := subtract(window, blocked)
	available := 0
	for _, f := range free {
		available += f.end - f.start
	}

	rec := &Recommendation{
		Date:           day.Format(calendar.DateLayout),
		AvailableHours: hours(available),
		Workload:       WorkloadLight,
		Allocations:    []Allocation{},
		Timetable:      []Slot{},
		Commitments:    used,
	}

	ranked := rank(day, tasks, loc)
	if len(ranked) == 0 {
		return rec
	}

	s.allocate(ranked, available)

	var total int
	var required float64
	for _, a := range ranked {
		total += a.minutes
		required += a.RemainingHours / float64(max(1, a.DaysRemaining))
	}
	rec.Allocations = ranked
	rec.TotalHours = hours(total)
	rec.RequiredHours = math.Round(required*100) / 100

	switch {
	case available > 0:
		rec.Ratio = math.Max(float64(total)/60, required) / rec.AvailableHours
		rec.Workload = Classify(rec.Ratio)
	case required > 0:
		rec.Workload = WorkloadOverloaded
	}

	rec.Timetable = lay(day, free, ranked)
	return rec
}

// blocked clips valid intervals to the window and merges overlaps.
// It also returns the intervals that took effect, in input order.
func (s *Scheduler) blocked(window span, intervals []calendar.Interval) ([]span, []calendar.Interval) {
	var spans []span
	used := []calendar.Interval{}
	for _, iv := range intervals {
		if iv.End <= iv.Start {
			continue
		}
		sp := span{max(int(iv.Start), window.start), min(int(iv.End), window.end)}
		if sp.end <= sp.start {
			continue
		}
		spans = append(spans, sp)
		used = append(used, iv)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var merged []span
	for _, sp := range spans {
		if n := len(merged); n > 0 && sp.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, sp.end)
			continue
		}
		merged = append(merged, sp)
	}
	return merged, used
}

// subtract returns the parts of window not covered by the sorted,
// disjoint blocked spans.
func subtract(window span, blocked []span) []span {
	var free []span
	cur := window.start
	for _, b := range blocked {
		if b.start > cur {
			free = append(free, span{cur, b.start})
		}
		cur = max(cur, b.end)
	}
	if cur < window.end {
		free = append(free, span{cur, window.end})
	}
	return free
}

// rank orders open tasks by days remaining, priority (high first),
// estimate (small first), then deadline and ID.
func rank(day time.Time, tasks []*task.Task, loc *time.Location) []Allocation {
	out := make([]Allocation, 0, len(tasks))
	for _, t := range tasks {
		if t == nil || !t.Open() {
			continue
		}
		remaining := t.RemainingHours()
		out = append(out, Allocation{
			TaskID:         t.ID,
			Title:          t.Title,
			Priority:       t.Priority,
			Complexity:     t.Complexity,
			Deadline:       t.Deadline,
			DaysRemaining:  daysBetween(day, t.Deadline.In(loc)),
			RemainingHours: math.Round(remaining*100) / 100,
			minutes:        int(math.Round(remaining * 60)),
			estimate:       t.EstimatedHours,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DaysRemaining != b.DaysRemaining {
			return a.DaysRemaining < b.DaysRemaining
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.estimate != b.estimate {
			return a.estimate < b.estimate
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.TaskID < b.TaskID
	})
	return out
}

// allocate gives each ranked task min(remaining, left, cap) minutes. The
// minutes field holds the remaining demand on entry and the allocation on
// return. The cap is lifted when a single task has demand.
func (s *Scheduler) allocate(ranked []Allocation, available int) {
	demanding := 0
	for _, a := range ranked {
		if a.minutes > 0 {
			demanding++
		}
	}
	limit := available
	if demanding > 1 {
		limit = int(math.Floor(s.cfg.TaskCeiling * float64(available)))
		if limit < 1 && available > 0 {
			limit = 1
		}
	}

	left := available
	for i := range ranked {
		give := min(ranked[i].minutes, left, limit)
		ranked[i].minutes = give
		ranked[i].AllocatedHours = hours(give)
		left -= give
	}
}

// lay walks the free spans in order and places allocations back to back.
// An allocation crossing a blocked span is split in two slots.
func lay(day time.Time, free []span, ranked []Allocation) []Slot {
	slots := []Slot{}
	seg := 0
	pos := 0
	if len(free) > 0 {
		pos = free[0].start
	}
	for _, a := range ranked {
		need := a.minutes
		for need > 0 && seg < len(free) {
			take := min(need, free[seg].end-pos)
			slots = append(slots, Slot{
				Start:      calendar.Clock(pos).On(day),
				End:        calendar.Clock(pos + take).On(day),
				TaskID:     a.TaskID,
				Title:      a.Title,
				Priority:   a.Priority,
				Complexity: a.Complexity,
			})
			pos += take
			need -= take
			if pos == free[seg].end {
				seg++
				if seg < len(free) {
					pos = free[seg].start
				}
			}
		}
	}
	return slots
}

// daysBetween counts calendar days from day to deadline; negative when
// the deadline date has passed.
func daysBetween(day, deadline time.Time) int {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := deadline.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func hours(minutes int) float64 { return float64(minutes) / 60 }

// Package planner is the caller-facing service. It ties task storage, the
// estimator, the learner, the commitment calendar and the scheduler
// together and publishes what happens on the event bus.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/task"
)

// Deps are the collaborators of a Planner. Bus and Logger are optional.
type Deps struct {
	Tasks     task.Store
	Estimator *estimate.Estimator
	Learner   *learning.Learner
	Calendar  *calendar.Calendar
	Scheduler *schedule.Scheduler
	Bus       comms.Bus
	Logger    *slog.Logger
}

// Planner implements task, recommendation and calendar operations.
type Planner struct {
	tasks     task.Store
	estimator *estimate.Estimator
	learner   *learning.Learner
	calendar  *calendar.Calendar
	scheduler *schedule.Scheduler
	bus       comms.Bus
	logger    *slog.Logger
	now       func() time.Time
	locks     *keyedMutex
}

// New creates a Planner.
func New(d Deps) (*Planner, error) {
	switch {
	case d.Tasks == nil:
		return nil, errors.New("planner: task store is required")
	case d.Estimator == nil:
		return nil, errors.New("planner: estimator is required")
	case d.Learner == nil:
		return nil, errors.New("planner: learner is required")
	case d.Calendar == nil:
		return nil, errors.New("planner: calendar is required")
	case d.Scheduler == nil:
		return nil, errors.New("planner: scheduler is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		tasks:     d.Tasks,
		estimator: d.Estimator,
		learner:   d.Learner,
		calendar:  d.Calendar,
		scheduler: d.Scheduler,
		bus:       d.Bus,
		logger:    logger,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}, nil
}

// Location is the time zone days are planned in.
func (p *Planner) Location() *time.Location {
	if loc := p.scheduler.Config().Location; loc != nil {
		return loc
	}
	return time.Local
}

// Today is the current date in the planning location.
func (p *Planner) Today() time.Time {
	return p.now().In(p.Location())
}

// ParseDay reads a YYYY-MM-DD date in the planning location. An empty
// string means today.
func (p *Planner) ParseDay(s string) (time.Time, error) {
	if s == "" {
		return p.Today(), nil
	}
	return time.ParseInLocation(calendar.DateLayout, s, p.Location())
}

// profile returns the current pace profile, or the neutral profile when it
// cannot be loaded. Estimation never fails on account of the learner.
func (p *Planner) profile(ctx context.Context) learning.Profile {
	prof, err := p.learner.Profile(ctx)
	if err != nil {
		p.logger.Warn("pace profile unavailable, using neutral profile", slog.Any("err", err))
		return learning.NeutralProfile()
	}
	return prof
}

func (p *Planner) publish(ctx context.Context, topic comms.Topic, subject string, payload any) {
	if p.bus == nil {
		return
	}
	ev, err := comms.NewEvent(topic, subject, payload)
	if err == nil {
		err = p.bus.Publish(ctx, ev)
	}
	if err != nil {
		p.logger.Warn("event publish failed",
			slog.String("topic", string(topic)),
			slog.String("subject", subject),
			slog.Any("err", err))
	}
}

package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/comms"
)

// Commitments lists the standing intervals followed by stored ones.
func (p *Planner) Commitments(ctx context.Context) ([]calendar.Interval, error) {
	stored, err := p.calendar.Store().List(ctx)
	if err != nil {
		return nil, err
	}
	return append(p.calendar.Standing(), stored...), nil
}

// AddCommitment stores a fixed commitment.
func (p *Planner) AddCommitment(ctx context.Context, iv calendar.Interval) (calendar.Interval, error) {
	iv.ID = ""
	saved, err := p.calendar.Store().Add(ctx, iv)
	if err != nil {
		return calendar.Interval{}, err
	}
	p.logger.Info("commitment added",
		slog.String("id", saved.ID),
		slog.String("label", saved.Label),
		slog.String("start", saved.Start.String()),
		slog.String("end", saved.End.String()))
	p.publish(ctx, comms.TopicCalendarChanged, saved.ID, saved)
	return saved, nil
}

// ImportTeaching replaces the stored teaching slots with the timetable read
// from r. Nothing changes when the timetable does not parse.
func (p *Planner) ImportTeaching(ctx context.Context, r io.Reader) ([]calendar.Interval, error) {
	slots, err := calendar.ParseTeaching(r)
	if err != nil {
		return nil, err
	}

	store := p.calendar.Store()
	existing, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, iv := range existing {
		if iv.Kind != calendar.KindTeaching {
			continue
		}
		if err := store.Delete(ctx, iv.ID); err != nil {
			return nil, fmt.Errorf("replace teaching slot %s: %w", iv.ID, err)
		}
	}

	out := make([]calendar.Interval, 0, len(slots))
	for _, iv := range slots {
		saved, err := store.Add(ctx, iv)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	p.logger.Info("teaching timetable imported", slog.Int("slots", len(out)))
	p.publish(ctx, comms.TopicCalendarChanged, "teaching", out)
	return out, nil
}

// DeleteCommitment removes a stored commitment. Standing intervals come
// from configuration and are not found here.
func (p *Planner) DeleteCommitment(ctx context.Context, id string) error {
	if err := p.calendar.Store().Delete(ctx, id); err != nil {
		return err
	}
	p.logger.Info("commitment deleted", slog.String("id", id))
	p.publish(ctx, comms.TopicCalendarChanged, id, nil)
	return nil
}

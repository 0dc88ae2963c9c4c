package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// TeachingSlot is one entry of an imported teaching timetable.
type TeachingSlot struct {
	Day         string `yaml:"day" json:"day"`
	StartTime   string `yaml:"start_time" json:"start_time"`
	EndTime     string `yaml:"end_time" json:"end_time"`
	Description string `yaml:"description" json:"description"`
}

type teachingFile struct {
	Teaching []TeachingSlot `yaml:"teaching"`
}

// ParseTeaching reads a teaching timetable. The document is either a list
// of slots or a mapping with a "teaching" list; JSON input is accepted too.
func ParseTeaching(r io.Reader) ([]Interval, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read timetable: %w", err)
	}

	var slots []TeachingSlot
	if err := yaml.Unmarshal(data, &slots); err != nil {
		var file teachingFile
		if err2 := yaml.Unmarshal(data, &file); err2 != nil {
			return nil, fmt.Errorf("%w: parse timetable: %v", ErrInvalidInterval, err)
		}
		slots = file.Teaching
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: timetable has no entries", ErrInvalidInterval)
	}

	out := make([]Interval, 0, len(slots))
	var errs []error
	for i, s := range slots {
		iv, err := s.Interval()
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i+1, err))
			continue
		}
		out = append(out, iv)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Interval converts the slot into a weekly teaching commitment.
func (s TeachingSlot) Interval() (Interval, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return Interval{}, err
	}
	label := strings.TrimSpace(s.Description)
	if label == "" {
		label = "Teaching time"
	}
	iv := Interval{Weekday: s.Day, Start: start, End: end, Label: label, Kind: KindTeaching}
	iv.Normalize()
	if iv.Weekday == "" {
		return Interval{}, fmt.Errorf("%w: teaching slot needs a day", ErrInvalidInterval)
	}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

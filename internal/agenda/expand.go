// Package agenda turns stored events into concrete, timezone-normalized
// occurrences for list, calendar and day-planner views. Every view goes
// through ExpandOccurrences so snooze repeats are generated one way only.
package agenda

import (
	"errors"
	"sort"
	"time"

	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// ExpandConfig controls how snooze expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone in which calendar days are bucketed and
	// to which all occurrences are converted. If nil, UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd select occurrences by calendar day in
	// DisplayLocation, both ends inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// Limits bounds each snooze series. Zero fields use recurrence defaults.
	Limits recurrence.Limits

	// Categories resolves Event.CategoryID into a display path.
	Categories []model.Category
}

// ExpandResult wraps the list of expanded occurrences and the events that
// did not expand cleanly.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records IDs whose snooze series hit a guard.
	TruncatedEvents []string
	// InvalidEvents records IDs with an unparseable target date or snooze
	// descriptor.
	InvalidEvents []string
}

// ErrInvertedRange is returned when RangeEnd is before RangeStart.
var ErrInvertedRange = errors.New("agenda: RangeEnd is before RangeStart")

func (cfg *ExpandConfig) normalize() error {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return ErrInvertedRange
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	return nil
}

func (cfg ExpandConfig) window() (first, last recurrence.Date) {
	return recurrence.DateOf(cfg.RangeStart.In(cfg.DisplayLocation)),
		recurrence.DateOf(cfg.RangeEnd.In(cfg.DisplayLocation))
}

// ExpandOccurrences expands events into the occurrences falling inside the
// configured window, in chronological order. It handles:
//
//   - events without a snooze descriptor (the target date only)
//   - structured descriptors (once, daily, weekly, custom)
//   - legacy date lists
//
// A broken descriptor never hides the event's own target date.
func ExpandOccurrences(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if err := cfg.normalize(); err != nil {
		return result, err
	}
	return expandAll(events, cfg, expandEvent), nil
}

type eventExpander func(ev model.Event, cfg ExpandConfig) ([]model.Occurrence, expandStatus)

func expandAll(events []model.Event, cfg ExpandConfig, expand eventExpander) ExpandResult {
	var result ExpandResult
	first, last := cfg.window()

	for _, ev := range events {
		occs, status := expand(ev, cfg)
		switch status {
		case statusInvalidTarget, statusInvalidSnooze:
			result.InvalidEvents = append(result.InvalidEvents, ev.ID)
		case statusTruncated:
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Warn("expand: snooze series truncated",
				"event", ev.ID,
				"limits", cfg.Limits,
			)
		}

		for _, occ := range occs {
			day, err := recurrence.ParseDate(occ.Date)
			if err != nil || day.Before(first) || day.After(last) {
				continue
			}
			result.Occurrences = append(result.Occurrences, occ)
		}
	}

	SortOccurrences(result.Occurrences)
	return result
}

type expandStatus int

const (
	statusOK expandStatus = iota
	statusTruncated
	statusInvalidTarget
	statusInvalidSnooze
)

func expandEvent(ev model.Event, cfg ExpandConfig) ([]model.Occurrence, expandStatus) {
	loc := cfg.DisplayLocation

	base, _, err := recurrence.ParseMoment(ev.TargetDate, loc)
	if err != nil {
		appLog.Error("expand: invalid target date", err, "event", ev.ID, "targetDate", ev.TargetDate)
		return nil, statusInvalidTarget
	}
	base = base.In(loc)

	status := statusOK
	var exp recurrence.Expansion
	desc := Descriptor(ev)
	if inv, ok := desc.(recurrence.Invalid); ok {
		appLog.Error("expand: invalid snooze descriptor", inv.Err, "event", ev.ID)
		status = statusInvalidSnooze
	} else if desc != nil {
		exp = cfg.Limits.Expand(desc)
		if exp.Truncated {
			status = statusTruncated
		}
	}

	clock := recurrence.ClockOf(base)
	if tod, ok := recurrence.TimeOfDayOverride(desc); ok {
		clock = tod
	}

	category := CategoryPath(cfg.Categories, ev.CategoryID)
	merged := recurrence.Merge(base, exp.Dates, loc)
	out := make([]model.Occurrence, 0, len(merged))
	for _, m := range merged {
		start := base
		if !m.IsOriginal {
			day, err := recurrence.ParseDate(m.Date)
			if err != nil {
				continue
			}
			start = day.At(loc, clock)
		}
		out = append(out, makeOccurrence(ev, category, m, start))
	}
	return out, status
}

// Descriptor parses the event's snooze blob. Events without one return nil.
func Descriptor(ev model.Event) recurrence.Descriptor {
	if len(ev.SnoozeDates) == 0 {
		return nil
	}
	return recurrence.ParseString(string(ev.SnoozeDates))
}

func makeOccurrence(ev model.Event, category string, m recurrence.Occurrence, start time.Time) model.Occurrence {
	return model.Occurrence{
		EventID:     ev.ID,
		Kind:        model.KindEvent,
		Title:       ev.Title,
		Description: ev.Description,
		Category:    category,
		Date:        m.Date,
		Start:       start,
		IsOriginal:  m.IsOriginal,
		// InstanceKey: event ID plus the local start time.
		InstanceKey: ev.ID + "@" + start.Format(time.RFC3339),
	}
}

// SortOccurrences orders occurrences by start time, then event ID.
func SortOccurrences(occs []model.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].EventID < occs[j].EventID
	})
}

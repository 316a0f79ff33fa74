package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// LoadLocation resolves an IANA zone name. An empty name is UTC, the
// default preference for new users.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseMoment parses a stored date or datetime. Values without an explicit
// offset are read as wall clock time in loc; a bare date is midnight in loc
// and reports hasClock=false.
func ParseMoment(s string, loc *time.Location) (t time.Time, hasClock bool, err error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("empty datetime")
	}
	if d, err := time.Parse(DateLayout, s); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), false, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true, nil
	}
	for _, layout := range momentLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable datetime %q", s)
}

// DayKey is the calendar day of t in loc, formatted YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// SameDay compares two instants at calendar-day granularity in loc. Two
// instants on the same local day match even when their UTC dates differ.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}

// OnDay reports whether any of the stored values falls on day in loc.
// Unparseable values never match.
func OnDay(values []string, day Date, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	for _, v := range values {
		t, _, err := ParseMoment(v, loc)
		if err != nil {
			continue
		}
		if DateOf(t.In(loc)) == day {
			return true
		}
	}
	return false
}

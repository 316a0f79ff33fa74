package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day wire format used by descriptors and occurrences.
const DateLayout = "2006-01-02"

// Date is a civil calendar day with no timezone attached. Descriptors speak in
// calendar days; instants only appear when a day is materialized for display.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date, normalizing out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

var momentLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate accepts a calendar day ("2024-03-10") or a datetime. For a
// datetime the calendar day is the one written in the value itself, so
// "2024-03-10T23:30:00-05:00" is 2024-03-10.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	for _, layout := range momentLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unparseable date %q", s)
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) AddDays(n int) Date { return DateOf(d.midnight().AddDate(0, 0, n)) }

// AddMonths adds calendar months with time.AddDate overflow: 2024-01-31 plus
// one month is 2024-03-02.
func (d Date) AddMonths(n int) Date { return DateOf(d.midnight().AddDate(0, n, 0)) }

func (d Date) Before(o Date) bool { return d.midnight().Before(o.midnight()) }

func (d Date) After(o Date) bool { return d.midnight().After(o.midnight()) }

func (d Date) Weekday() time.Weekday { return d.midnight().Weekday() }

// DaysUntil returns the signed number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.midnight().Sub(d.midnight()) / (24 * time.Hour))
}

// At materializes the day at the given wall clock time in loc.
func (d Date) At(loc *time.Location, tod TimeOfDay) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

func (d Date) String() string { return d.midnight().Format(DateLayout) }

// TimeOfDay is a wall clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ClockOf returns the wall clock time of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("unparseable time of day %q", s)
	}
	return ClockOf(t), nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

package recurrence

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Limits bounds generation. Zero fields fall back to DefaultLimits.
type Limits struct {
	// DefaultSpanDays is how far past startDate a descriptor without an
	// endDate reaches.
	DefaultSpanDays int
	// MaxOccurrences caps the generated sequence.
	MaxOccurrences int
	// MaxSpanDays caps how far past startDate generation may go, whatever
	// endDate says.
	MaxSpanDays int
}

var DefaultLimits = Limits{
	DefaultSpanDays: 90,
	MaxOccurrences:  500,
	MaxSpanDays:     730,
}

func (l Limits) normalized() Limits {
	if l.DefaultSpanDays <= 0 {
		l.DefaultSpanDays = DefaultLimits.DefaultSpanDays
	}
	if l.MaxOccurrences <= 0 {
		l.MaxOccurrences = DefaultLimits.MaxOccurrences
	}
	if l.MaxSpanDays <= 0 {
		l.MaxSpanDays = DefaultLimits.MaxSpanDays
	}
	return l
}

// Expansion is the generated sequence: calendar days in ascending order,
// no duplicates. Truncated is set when a guard cut the sequence short.
type Expansion struct {
	Dates     []string
	Truncated bool
}

// Occurrence is a single calendar appearance of an event.
type Occurrence struct {
	Date       string `json:"date"`
	IsOriginal bool   `json:"isOriginal"`
}

// Expand returns the days generated by d under DefaultLimits.
func Expand(d Descriptor) []string {
	return DefaultLimits.Expand(d).Dates
}

// Expand generates the days described by d. Invalid or degenerate
// descriptors produce an empty Expansion.
func (l Limits) Expand(d Descriptor) Expansion {
	l = l.normalized()

	switch v := d.(type) {
	case Once:
		if v.Start.IsZero() {
			return Expansion{}
		}
		return Expansion{Dates: []string{v.Start.String()}}

	case Daily:
		w, ok := l.window(v.Start, v.End)
		if !ok {
			return Expansion{}
		}
		c := collector{max: l.MaxOccurrences}
		for day := w.start; !day.After(w.end); day = day.AddDays(1) {
			if !c.add(day) {
				break
			}
		}
		return c.result(w)

	case Weekly:
		if v.Weekdays.Empty() {
			return Expansion{}
		}
		w, ok := l.window(v.Start, v.End)
		if !ok {
			return Expansion{}
		}
		c := collector{max: l.MaxOccurrences}
		for day := w.start.AddDays(1); !day.After(w.end); day = day.AddDays(1) {
			if !v.Weekdays.Has(day) {
				continue
			}
			if !c.add(day) {
				break
			}
		}
		return c.result(w)

	case Custom:
		step := stepper(v.Unit, v.Interval)
		if step == nil {
			return Expansion{}
		}
		w, ok := l.window(v.Start, v.End)
		if !ok {
			return Expansion{}
		}
		c := collector{max: l.MaxOccurrences}
		if stepDays(v.Unit, v.Interval) > l.MaxSpanDays {
			// A single step leaves the span guard; only the anchor fits.
			c.add(w.start)
			return c.result(w)
		}
		day := w.start
		for c.add(day) {
			next := step(day)
			if !next.After(day) || !next.Before(w.end) {
				break
			}
			day = next
		}
		return c.result(w)

	case Legacy:
		return l.passThrough(v.Dates)
	}

	return Expansion{}
}

func stepper(unit Unit, n int) func(Date) Date {
	if n <= 0 {
		return nil
	}
	switch unit {
	case UnitDays:
		return func(d Date) Date { return d.AddDays(n) }
	case UnitWeeks:
		return func(d Date) Date { return d.AddDays(7 * n) }
	case UnitMonths:
		return func(d Date) Date { return d.AddMonths(n) }
	}
	return nil
}

// stepDays is the shortest number of days one step of n units can cover.
func stepDays(unit Unit, n int) int {
	const maxDays = 1 << 40
	var per int
	switch unit {
	case UnitDays:
		per = 1
	case UnitWeeks:
		per = 7
	case UnitMonths:
		per = 28
	default:
		return 0
	}
	if n > maxDays/per {
		return maxDays
	}
	return n * per
}

type span struct {
	start, end Date
	clipped    bool
}

func (l Limits) window(start Date, end mo.Option[Date]) (span, bool) {
	if start.IsZero() {
		return span{}, false
	}
	e := end.OrElse(start.AddDays(l.DefaultSpanDays))
	if e.Before(start) {
		return span{}, false
	}
	w := span{start: start, end: e}
	if limit := start.AddDays(l.MaxSpanDays); e.After(limit) {
		w.end = limit
		w.clipped = true
	}
	return w, true
}

type collector struct {
	max       int
	dates     []string
	truncated bool
}

func (c *collector) add(d Date) bool {
	if len(c.dates) >= c.max {
		c.truncated = true
		return false
	}
	c.dates = append(c.dates, d.String())
	return true
}

func (c *collector) result(w span) Expansion {
	return Expansion{Dates: c.dates, Truncated: c.truncated || w.clipped}
}

func (l Limits) passThrough(dates []string) Expansion {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, s := range dates {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return legacyLess(out[i], out[j]) })

	var exp Expansion
	if len(out) > l.MaxOccurrences {
		out = out[:l.MaxOccurrences]
		exp.Truncated = true
	}
	exp.Dates = out
	return exp
}

// legacyLess orders parseable values chronologically ahead of anything
// unparseable, which sorts lexically.
func legacyLess(a, b string) bool {
	ta, _, errA := ParseMoment(a, time.UTC)
	tb, _, errB := ParseMoment(b, time.UTC)
	switch {
	case errA == nil && errB == nil:
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Occurrences merges the base event date with the days generated by d.
// Both sides are compared as calendar days in loc, so a generated day that
// coincides with the base date is reported once, as the original.
func Occurrences(base time.Time, d Descriptor, loc *time.Location, l Limits) []Occurrence {
	var generated []string
	if d != nil {
		generated = l.Expand(d).Dates
	}
	return Merge(base, generated, loc)
}

// Merge is Occurrences for an already expanded sequence. A zero base
// contributes no original occurrence.
func Merge(base time.Time, generated []string, loc *time.Location) []Occurrence {
	if loc == nil {
		loc = time.UTC
	}

	out := make([]Occurrence, 0, len(generated)+1)
	seen := make(map[string]struct{}, len(generated)+1)
	if !base.IsZero() {
		key := DayKey(base, loc)
		seen[key] = struct{}{}
		out = append(out, Occurrence{Date: key, IsOriginal: true})
	}

	for _, value := range generated {
		t, _, err := ParseMoment(value, loc)
		if err != nil {
			continue
		}
		key := DayKey(t, loc)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Occurrence{Date: key})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Package recurrence expands snooze/recurrence descriptors into the calendar
// days on which an event reappears.
//
// A descriptor is parsed once at the storage boundary into one of the
// variants below. Expansion is pure and never fails: anything malformed
// degrades to an empty sequence so a broken schedule cannot break a render.
package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/mo"
)

var (
	ErrEmpty          = errors.New("recurrence: empty descriptor")
	ErrMissingStart   = errors.New("recurrence: missing or invalid startDate")
	ErrBadEnd         = errors.New("recurrence: invalid endDate")
	ErrEndBeforeStart = errors.New("recurrence: endDate before startDate")
	ErrNoWeekdays     = errors.New("recurrence: weekly descriptor has no weekdays")
	ErrBadWeekdays    = errors.New("recurrence: weekdays must hold 7 flags")
	ErrBadInterval    = errors.New("recurrence: customInterval must be positive")
	ErrBadUnit        = errors.New("recurrence: unknown customUnit")
	ErrBadTimeOfDay   = errors.New("recurrence: invalid timeOfDay")
	ErrUnknownKind    = errors.New("recurrence: unknown kind")
)

type Kind string

const (
	KindOnce    Kind = "once"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindCustom  Kind = "custom"
	KindLegacy  Kind = "legacy"
	KindInvalid Kind = "invalid"
)

type Unit string

const (
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
)

func parseUnit(s string) (Unit, bool) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitDays, "day":
		return UnitDays, true
	case UnitWeeks, "week":
		return UnitWeeks, true
	case UnitMonths, "month":
		return UnitMonths, true
	}
	return "", false
}

// Descriptor is the sealed set of recurrence shapes.
type Descriptor interface {
	Kind() Kind
	fmt.Stringer
	isDescriptor()
}

// Once repeats nothing: its only occurrence is the anchor.
type Once struct {
	Start Date
}

// Daily covers every day from Start through End inclusive.
type Daily struct {
	Start     Date
	End       mo.Option[Date]
	TimeOfDay mo.Option[TimeOfDay]
}

// Weekly covers the flagged weekdays in (Start, End]. Start is the anchor and
// is never generated itself.
type Weekly struct {
	Start     Date
	End       mo.Option[Date]
	Weekdays  WeekdaySet
	TimeOfDay mo.Option[TimeOfDay]
}

// Custom steps from Start by Interval units. Start is the first occurrence;
// later steps must land strictly before End.
type Custom struct {
	Start     Date
	End       mo.Option[Date]
	Interval  int
	Unit      Unit
	TimeOfDay mo.Option[TimeOfDay]
}

// Legacy is the old {"dates": [...]} shape, passed through as stored.
type Legacy struct {
	Dates []string
}

// Invalid marks a descriptor that failed boundary parsing.
type Invalid struct {
	Err error
}

func (Once) Kind() Kind    { return KindOnce }
func (Daily) Kind() Kind   { return KindDaily }
func (Weekly) Kind() Kind  { return KindWeekly }
func (Custom) Kind() Kind  { return KindCustom }
func (Legacy) Kind() Kind  { return KindLegacy }
func (Invalid) Kind() Kind { return KindInvalid }

func (Once) isDescriptor()    {}
func (Daily) isDescriptor()   {}
func (Weekly) isDescriptor()  {}
func (Custom) isDescriptor()  {}
func (Legacy) isDescriptor()  {}
func (Invalid) isDescriptor() {}

func (d Once) String() string { return "once " + d.Start.String() }

func (d Daily) String() string {
	return "daily " + d.Start.String() + ".." + optString(d.End) + todSuffix(d.TimeOfDay)
}

func (d Weekly) String() string {
	var b strings.Builder
	for _, on := range d.Weekdays {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return "weekly " + d.Start.String() + ".." + optString(d.End) + " " + b.String() + todSuffix(d.TimeOfDay)
}

func (d Custom) String() string {
	return fmt.Sprintf("custom %s..%s every %d %s%s", d.Start, optString(d.End), d.Interval, d.Unit, todSuffix(d.TimeOfDay))
}

func (d Legacy) String() string { return "legacy [" + strings.Join(d.Dates, ",") + "]" }

func (d Invalid) String() string {
	if d.Err == nil {
		return "invalid"
	}
	return "invalid: " + d.Err.Error()
}

func optString(o mo.Option[Date]) string {
	if v, ok := o.Get(); ok {
		return v.String()
	}
	return "?"
}

func todSuffix(o mo.Option[TimeOfDay]) string {
	if v, ok := o.Get(); ok {
		return " @" + v.String()
	}
	return ""
}

// timeOfDay returns the explicit override carried by d, if any.
func timeOfDay(d Descriptor) mo.Option[TimeOfDay] {
	switch v := d.(type) {
	case Daily:
		return v.TimeOfDay
	case Weekly:
		return v.TimeOfDay
	case Custom:
		return v.TimeOfDay
	}
	return mo.None[TimeOfDay]()
}

// TimeOfDayOverride exposes the descriptor's explicit time of day.
func TimeOfDayOverride(d Descriptor) (TimeOfDay, bool) {
	return timeOfDay(d).Get()
}

package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

var ruleWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// RRuleOption returns an RFC 5545 rule that reproduces the generated part of
// d exactly: same first day, same step, COUNT equal to the number of
// generated days. base is the time of day used when d carries no override.
//
// ok is false when no such rule exists: Once and Legacy descriptors, empty
// expansions, and month steps anchored after the 28th, where RRULE skips
// short months but AddDate overflows into the next one.
func RRuleOption(d Descriptor, l Limits, loc *time.Location, base TimeOfDay) (opt rrule.ROption, ok bool) {
	if loc == nil {
		loc = time.UTC
	}

	exp := l.Expand(d)
	if len(exp.Dates) == 0 {
		return rrule.ROption{}, false
	}
	first, err := ParseDate(exp.Dates[0])
	if err != nil {
		return rrule.ROption{}, false
	}

	opt = rrule.ROption{
		Interval: 1,
		Count:    len(exp.Dates),
		Wkst:     rrule.MO,
		Dtstart:  first.At(loc, timeOfDay(d).OrElse(base)),
	}

	switch v := d.(type) {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for i, on := range v.Weekdays {
			if on {
				opt.Byweekday = append(opt.Byweekday, ruleWeekdays[i])
			}
		}
	case Custom:
		opt.Interval = v.Interval
		switch v.Unit {
		case UnitDays:
			opt.Freq = rrule.DAILY
		case UnitWeeks:
			opt.Freq = rrule.WEEKLY
		case UnitMonths:
			if v.Start.Day > 28 {
				return rrule.ROption{}, false
			}
			opt.Freq = rrule.MONTHLY
		default:
			return rrule.ROption{}, false
		}
	default:
		return rrule.ROption{}, false
	}

	return opt, true
}

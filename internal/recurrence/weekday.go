package recurrence

import "time"

// MondayIndex converts Go's Sunday-based weekday into the Monday=0 index used
// by WeekdaySet. Every read and write of a weekday slot goes through here.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// WeekdaySet flags weekdays, Monday first.
type WeekdaySet [7]bool

// WeekdaysOf builds a set from Go weekdays.
func WeekdaysOf(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s.Set(d)
	}
	return s
}

func (s *WeekdaySet) Set(wd time.Weekday) {
	s[MondayIndex(wd)] = true
}

// Has reports whether the weekday of d is flagged.
func (s WeekdaySet) Has(d Date) bool {
	return s[MondayIndex(d.Weekday())]
}

func (s WeekdaySet) Empty() bool {
	for _, on := range s {
		if on {
			return false
		}
	}
	return true
}

// Weekdays lists the flagged days in Monday-first order.
func (s WeekdaySet) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for i, on := range s {
		if on {
			out = append(out, time.Weekday((i+1)%7))
		}
	}
	return out
}

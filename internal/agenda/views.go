package agenda

import (
	"strconv"
	"strings"
	"time"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// BucketByDay groups occurrences by calendar day (YYYY-MM-DD) in loc, the
// lookup a month grid renders from.
func BucketByDay(occs []model.Occurrence, loc *time.Location) map[string][]model.Occurrence {
	buckets := make(map[string][]model.Occurrence)
	for _, occ := range occs {
		key := recurrence.DayKey(occ.Start, loc)
		buckets[key] = append(buckets[key], occ)
	}
	return buckets
}

// WeekOf returns the first day of the week containing day, weeks starting
// on first.
func WeekOf(day recurrence.Date, first time.Weekday) recurrence.Date {
	back := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDays(-back)
}

// BucketByWeek groups occurrences by the first day (YYYY-MM-DD) of their
// week in loc.
func BucketByWeek(occs []model.Occurrence, loc *time.Location, first time.Weekday) map[string][]model.Occurrence {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make(map[string][]model.Occurrence)
	for _, occ := range occs {
		key := WeekOf(recurrence.DateOf(occ.Start.In(loc)), first).String()
		buckets[key] = append(buckets[key], occ)
	}
	return buckets
}

// OnDay returns the occurrences on day in loc, in input order.
func OnDay(occs []model.Occurrence, day recurrence.Date, loc *time.Location) []model.Occurrence {
	key := day.String()
	var out []model.Occurrence
	for _, occ := range occs {
		if recurrence.DayKey(occ.Start, loc) == key {
			out = append(out, occ)
		}
	}
	return out
}

// CategoryPath renders a category and its ancestors as "Parent / Child".
// Unknown IDs yield an empty string; a parent cycle stops at the first
// repeated category.
func CategoryPath(categories []model.Category, id string) string {
	if id == "" {
		return ""
	}
	byID := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var names []string
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		c, ok := byID[id]
		if !ok {
			break
		}
		seen[id] = true
		names = append(names, c.Name)
		id = c.ParentCategoryID
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / ")
}

// Countdown renders the time left until target with its two largest units:
// "3d 4h", "4h 12m" or "12m 5s". It returns "passed" once target is reached.
func Countdown(now, target time.Time) string {
	left := target.Sub(now)
	if left <= 0 {
		return "passed"
	}

	secs := int64(left / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	rest := secs % 60

	switch {
	case days > 0:
		return itoa(days) + "d " + itoa(hours) + "h"
	case hours > 0:
		return itoa(hours) + "h " + itoa(mins) + "m"
	default:
		return itoa(mins) + "m " + itoa(rest) + "s"
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

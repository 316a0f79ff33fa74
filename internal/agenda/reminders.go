package agenda

import (
	"fmt"
	"time"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// Reminders places monthly reminders on the calendar days of the window.
// A recurring reminder appears every month on its day, clamped to the last
// day of short months; a one-off reminder only in its own year and month.
// Completed reminders are kept and flagged.
func Reminders(reminders []model.MonthlyReminder, cfg ExpandConfig) ([]model.Occurrence, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	first, last := cfg.window()

	var out []model.Occurrence
	for month := recurrence.NewDate(first.Year, first.Month, 1); !month.After(last); month = month.AddMonths(1) {
		for _, r := range reminders {
			day, ok := reminderDay(r, month)
			if !ok || day.Before(first) || day.After(last) {
				continue
			}
			start := day.At(cfg.DisplayLocation, recurrence.TimeOfDay{})
			out = append(out, model.Occurrence{
				EventID:     r.ID,
				Kind:        model.KindReminder,
				Title:       r.Title,
				Description: r.Description,
				Date:        day.String(),
				Start:       start,
				IsOriginal:  !r.IsRecurring,
				IsCompleted: r.IsCompleted,
				InstanceKey: fmt.Sprintf("reminder:%s@%s", r.ID, day),
			})
		}
	}

	SortOccurrences(out)
	return out, nil
}

// reminderDay is the day r falls on in the month starting at month.
func reminderDay(r model.MonthlyReminder, month recurrence.Date) (recurrence.Date, bool) {
	if r.Day < 1 {
		return recurrence.Date{}, false
	}
	if !r.IsRecurring && (r.Year != month.Year || time.Month(r.Month) != month.Month) {
		return recurrence.Date{}, false
	}
	day := r.Day
	if n := daysIn(month); day > n {
		day = n
	}
	return recurrence.Date{Year: month.Year, Month: month.Month, Day: day}, true
}

func daysIn(month recurrence.Date) int {
	return month.AddMonths(1).AddDays(-1).Day
}

package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

func day(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type row struct {
	ID       string
	Start    string
	Original bool
}

func rows(occs []model.Occurrence) []row {
	out := make([]row, 0, len(occs))
	for _, o := range occs {
		out = append(out, row{ID: o.EventID, Start: o.Start.Format("2006-01-02 15:04"), Original: o.IsOriginal})
	}
	return out
}

func TestExpandOccurrencesWindow(t *testing.T) {
	events := []model.Event{
		{ID: "plain", Title: "Dentist", TargetDate: "2024-03-10T09:00:00"},
		{ID: "daily", Title: "Water plants", TargetDate: "2024-03-10T18:30",
			SnoozeDates: `{"kind":"daily","startDate":"2024-03-10","endDate":"2024-03-12"}`},
		{ID: "broken-target", Title: "???", TargetDate: "soon"},
		{ID: "broken-snooze", Title: "Pay rent", TargetDate: "2024-03-11", SnoozeDates: `{"kind":"weekly"}`},
		{ID: "weekly", Title: "Gym", TargetDate: "2024-03-04T10:00:00Z",
			SnoozeDates: `{"kind":"weekly","startDate":"2024-03-04","endDate":"2024-03-18","weekdays":[true,false,false,false,false,true,false],"timeOfDay":"07:00"}`},
	}

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      day("2024-03-09T00:00:00Z"),
		RangeEnd:        day("2024-03-12T00:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, []row{
		{"weekly", "2024-03-09 07:00", false},
		{"plain", "2024-03-10 09:00", true},
		{"daily", "2024-03-10 18:30", true},
		{"broken-snooze", "2024-03-11 00:00", true},
		{"weekly", "2024-03-11 07:00", false},
		{"daily", "2024-03-11 18:30", false},
		{"daily", "2024-03-12 18:30", false},
	}, rows(res.Occurrences))
	assert.Equal(t, []string{"broken-target", "broken-snooze"}, res.InvalidEvents)
	assert.Empty(t, res.TruncatedEvents)

	first := res.Occurrences[0]
	assert.Equal(t, model.KindEvent, first.Kind)
	assert.Equal(t, "2024-03-09", first.Date)
	assert.Equal(t, "weekly@2024-03-09T07:00:00Z", first.InstanceKey)
}

func TestExpandOccurrencesDisplayZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	events := []model.Event{{
		ID:          "late",
		TargetDate:  "2024-03-10T23:30:00Z",
		SnoozeDates: `{"kind":"daily","startDate":"2024-03-11","endDate":"2024-03-12"}`,
	}}

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: tokyo,
		RangeStart:      time.Date(2024, 3, 1, 0, 0, 0, 0, tokyo),
		RangeEnd:        time.Date(2024, 3, 31, 0, 0, 0, 0, tokyo),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, row{"late", "2024-03-11 08:30", true}, rows(res.Occurrences)[0])
	assert.Equal(t, row{"late", "2024-03-12 08:30", false}, rows(res.Occurrences)[1])
	assert.Equal(t, "2024-03-12", res.Occurrences[1].Date)
}

func TestExpandOccurrencesTruncated(t *testing.T) {
	events := []model.Event{{
		ID:          "forever",
		TargetDate:  "2024-01-01",
		SnoozeDates: `{"kind":"custom","startDate":"2024-01-01","endDate":"2034-01-01","customInterval":1,"customUnit":"days"}`,
	}}

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: day("2024-01-01T00:00:00Z"),
		RangeEnd:   day("2034-01-01T00:00:00Z"),
		Limits:     recurrence.Limits{MaxOccurrences: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, res.TruncatedEvents)
	assert.Len(t, res.Occurrences, 10)
}

func TestExpandOccurrencesCategoryAndRange(t *testing.T) {
	cats := []model.Category{
		{ID: "home", Name: "Home"},
		{ID: "bills", Name: "Bills", ParentCategoryID: "home"},
	}
	events := []model.Event{{ID: "e", TargetDate: "2024-03-10", CategoryID: "bills"}}

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: day("2024-03-10T00:00:00Z"),
		RangeEnd:   day("2024-03-10T00:00:00Z"),
		Categories: cats,
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "Home / Bills", res.Occurrences[0].Category)

	_, err = ExpandOccurrences(events, ExpandConfig{
		RangeStart: day("2024-03-10T00:00:00Z"),
		RangeEnd:   day("2024-03-09T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestReminders(t *testing.T) {
	reminders := []model.MonthlyReminder{
		{ID: "r1", Title: "Card bill", Day: 31, IsRecurring: true},
		{ID: "r2", Title: "Car tax", Year: 2024, Month: 2, Day: 10},
		{ID: "r3", Title: "Rent", Day: 10, IsRecurring: true, IsCompleted: true},
		{ID: "r4", Title: "Old", Year: 2023, Month: 2, Day: 10},
		{ID: "r5", Title: "Broken", Day: 0, IsRecurring: true},
	}

	occs, err := Reminders(reminders, ExpandConfig{
		RangeStart: day("2024-01-15T00:00:00Z"),
		RangeEnd:   day("2024-03-20T00:00:00Z"),
	})
	require.NoError(t, err)

	var got []string
	for _, o := range occs {
		got = append(got, o.EventID+" "+o.Date)
		assert.Equal(t, model.KindReminder, o.Kind)
		assert.Equal(t, o.EventID == "r3", o.IsCompleted)
	}
	assert.Equal(t, []string{
		"r1 2024-01-31",
		"r2 2024-02-10",
		"r3 2024-02-10",
		"r1 2024-02-29",
		"r3 2024-03-10",
	}, got)
}

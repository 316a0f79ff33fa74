package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

func TestPlannerSlots(t *testing.T) {
	t.Parallel()

	d := recurrence.MustDate("2024-03-11")
	at := func(h, m int) time.Time { return d.At(time.UTC, recurrence.TimeOfDay{Hour: h, Minute: m}) }
	occs := []model.Occurrence{
		{EventID: "standup", Kind: model.KindEvent, Start: at(9, 0)},
		{EventID: "lunch", Kind: model.KindEvent, Start: at(12, 45)},
		{EventID: "early", Kind: model.KindEvent, Start: at(7, 30)},
		{EventID: "late", Kind: model.KindEvent, Start: at(17, 20)},
		{EventID: "after", Kind: model.KindEvent, Start: at(17, 30)},
		{EventID: "rent", Kind: model.KindReminder, Start: at(9, 0)},
		{EventID: "tomorrow", Kind: model.KindEvent, Start: at(33, 0)},
	}

	slots := PlannerSlots(occs, d, time.UTC, 9, 17)
	require.Len(t, slots, 17)
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "09:00 - 09:30", slots[0].Range)
	assert.Equal(t, "17:00 - 17:30", slots[16].Range)

	filed := map[string]string{}
	for _, s := range slots {
		for _, occ := range s.Occurrences {
			filed[occ.EventID] = s.Time
		}
	}
	assert.Equal(t, map[string]string{"standup": "09:00", "lunch": "12:30", "late": "17:00"}, filed)

	// reversed hours are swapped
	assert.Equal(t, slots, PlannerSlots(occs, d, time.UTC, 17, 9))
}

func TestPlannerSlotsLocalTime(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	d := recurrence.MustDate("2024-03-11")
	occs := []model.Occurrence{
		// 2024-03-10 23:10 UTC is 08:10 on the 11th in Tokyo
		{EventID: "call", Kind: model.KindEvent, Start: time.Date(2024, 3, 10, 23, 10, 0, 0, time.UTC)},
	}

	slots := PlannerSlots(occs, d, tokyo, 8, 9)
	require.Len(t, slots, 3)
	require.Len(t, slots[0].Occurrences, 1)
	assert.Equal(t, "08:00", slots[0].Time)

	assert.Empty(t, PlannerSlots(occs, d, time.UTC, 0, 23)[46].Occurrences)
	assert.Len(t, PlannerSlots(occs, d, time.UTC, -3, 40), 47)
}

func TestFillTasks(t *testing.T) {
	t.Parallel()

	plans := []model.DayPlan{
		{ID: "p0", Date: "2024-03-10", Tasks: model.PlanTasks{"09:00": "wrong day"}},
		{ID: "p1", Date: "2024-03-11", Tasks: model.PlanTasks{"09:30": "Write report", "06:00": "Gym"}},
	}
	d := recurrence.MustDate("2024-03-11")
	slots := PlannerSlots(nil, d, time.UTC, 9, 10)

	plan := PlanFor(plans, d)
	require.NotNil(t, plan)
	assert.Equal(t, "p1", plan.ID)
	FillTasks(slots, plan)
	assert.Equal(t, []string{"", "Write report", ""}, []string{slots[0].Task, slots[1].Task, slots[2].Task})

	assert.Nil(t, PlanFor(plans, recurrence.MustDate("2024-03-12")))
	FillTasks(slots, nil)
	assert.Equal(t, "Write report", slots[1].Task)
}

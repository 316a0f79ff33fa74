package agenda

import (
	"time"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// SlotMinutes is the length of one day-planner slot.
const SlotMinutes = 30

// Slot is one row of the day planner.
type Slot struct {
	// Time is the slot start, "HH:MM".
	Time string `json:"time"`
	// Range reads "09:00 - 09:30".
	Range       string             `json:"range"`
	Task        string             `json:"task,omitempty"`
	Occurrences []model.Occurrence `json:"occurrences,omitempty"`
}

// PlannerSlots lays day out in 30 minute slots from startHour to endHour and
// files each event occurrence of that day under the slot its local start
// time falls in. The hours are swapped when given in reverse and clamped to
// 0..23; the last slot starts at endHour. Occurrences outside the slots are
// left out.
func PlannerSlots(occs []model.Occurrence, day recurrence.Date, loc *time.Location, startHour, endHour int) []Slot {
	if loc == nil {
		loc = time.UTC
	}
	startHour, endHour = clampHour(startHour), clampHour(endHour)
	if startHour > endHour {
		startHour, endHour = endHour, startHour
	}

	n := (endHour-startHour)*60/SlotMinutes + 1
	slots := make([]Slot, n)
	for i := range slots {
		from := recurrence.TimeOfDay{Hour: startHour + i*SlotMinutes/60, Minute: i * SlotMinutes % 60}
		toMin := from.Hour*60 + from.Minute + SlotMinutes
		to := recurrence.TimeOfDay{Hour: toMin / 60, Minute: toMin % 60}
		slots[i] = Slot{Time: from.String(), Range: from.String() + " - " + to.String()}
	}

	for _, occ := range OnDay(occs, day, loc) {
		if occ.Kind != model.KindEvent {
			continue
		}
		local := occ.Start.In(loc)
		idx := (local.Hour()*60+local.Minute()-startHour*60) / SlotMinutes
		if local.Hour() < startHour || idx >= n {
			continue
		}
		slots[idx].Occurrences = append(slots[idx].Occurrences, occ)
	}
	return slots
}

func clampHour(h int) int {
	switch {
	case h < 0:
		return 0
	case h > 23:
		return 23
	}
	return h
}

// FillTasks writes the tasks of plan into the matching slots. Tasks keyed by
// a time that is not a slot start are ignored.
func FillTasks(slots []Slot, plan *model.DayPlan) {
	if plan == nil {
		return
	}
	for i := range slots {
		slots[i].Task = plan.Tasks[slots[i].Time]
	}
}

// PlanFor returns the plan stored for day, or nil.
func PlanFor(plans []model.DayPlan, day recurrence.Date) *model.DayPlan {
	for i := range plans {
		d, err := recurrence.ParseDate(plans[i].Date)
		if err == nil && d == day {
			return &plans[i]
		}
	}
	return nil
}

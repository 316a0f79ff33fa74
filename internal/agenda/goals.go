package agenda

import (
	"sort"
	"strconv"

	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// Deadlines puts goal and subtask due dates inside the window on the
// calendar. Goals carry their subtask progress; subtasks are described by
// their goal's title. Records without a due date are skipped.
func Deadlines(goals []model.Goal, subtasks []model.SubTask, cfg ExpandConfig) ([]model.Occurrence, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	first, last := cfg.window()
	loc := cfg.DisplayLocation

	byGoal := make(map[string][]model.SubTask)
	for _, st := range subtasks {
		byGoal[st.GoalID] = append(byGoal[st.GoalID], st)
	}

	var out []model.Occurrence
	add := func(occ model.Occurrence, due string) {
		if due == "" {
			return
		}
		at, _, err := recurrence.ParseMoment(due, loc)
		if err != nil {
			appLog.Warn("deadline: invalid due date", "id", occ.EventID, "dueDate", due)
			return
		}
		at = at.In(loc)
		day := recurrence.DateOf(at)
		if day.Before(first) || day.After(last) {
			return
		}
		occ.Date = day.String()
		occ.Start = at
		occ.IsOriginal = true
		occ.InstanceKey = string(occ.Kind) + ":" + occ.EventID + "@" + day.String()
		out = append(out, occ)
	}

	for _, g := range goals {
		steps := byGoal[g.ID]
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

		add(model.Occurrence{
			EventID:     g.ID,
			Kind:        model.KindGoal,
			Title:       g.Title,
			Description: g.Description,
			IsCompleted: g.IsCompleted,
			Progress:    progress(steps),
		}, g.DueDate)

		for _, st := range steps {
			add(model.Occurrence{
				EventID:     st.ID,
				Kind:        model.KindSubTask,
				Title:       st.Content,
				Description: g.Title,
				IsCompleted: st.IsCompleted,
			}, st.DueDate)
		}
	}

	SortOccurrences(out)
	return out, nil
}

func progress(steps []model.SubTask) string {
	if len(steps) == 0 {
		return ""
	}
	done := 0
	for _, st := range steps {
		if st.IsCompleted {
			done++
		}
	}
	return strconv.Itoa(done) + "/" + strconv.Itoa(len(steps))
}

// AttachTodos hangs each event's todos on its occurrences. Todos keep their
// input order.
func AttachTodos(occs []model.Occurrence, todos []model.Todo) {
	byEvent := make(map[string][]model.Todo)
	for _, td := range todos {
		if td.EventID != "" {
			byEvent[td.EventID] = append(byEvent[td.EventID], td)
		}
	}
	for i := range occs {
		if occs[i].Kind == model.KindEvent {
			occs[i].Todos = byEvent[occs[i].EventID]
		}
	}
}

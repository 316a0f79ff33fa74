package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"trackmyevents/internal/agenda"
	"trackmyevents/internal/ics"
	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
	"trackmyevents/internal/source"
)

const maxDescriptorBytes = 64 << 10

// eventsResponse is the JSON response shape for /api/events and /api/day.
type eventsResponse struct {
	Occurrences     []occurrenceDTO     `json:"occurrences"`
	ByDay           map[string][]string `json:"by_day,omitempty"`
	ByWeek          map[string][]string `json:"by_week,omitempty"`
	Slots           []agenda.Slot       `json:"slots,omitempty"`
	TruncatedEvents []string            `json:"truncated_events,omitempty"`
	InvalidEvents   []string            `json:"invalid_events,omitempty"`
	RangeStart      time.Time           `json:"range_start"`
	RangeEnd        time.Time           `json:"range_end"`
	DisplayTimeZone string              `json:"display_timezone"`
	WeekStart       string              `json:"week_start"`
	LoadedAt        time.Time           `json:"loaded_at"`
}

// occurrenceDTO adds the live countdown to an occurrence.
type occurrenceDTO struct {
	model.Occurrence
	Countdown string `json:"countdown,omitempty"`
}

// eventsCache holds a cached /api/events result and its timestamp.
type eventsCache struct {
	occs      []model.Occurrence
	resp      eventsResponse
	updatedAt time.Time
}

type agendaWindow struct {
	loc        *time.Location
	start, end time.Time
}

func (s *Server) window(doc *source.Document, first, last recurrence.Date) agendaWindow {
	loc := s.location(doc)
	return agendaWindow{
		loc:   loc,
		start: first.At(loc, recurrence.TimeOfDay{}),
		end:   last.At(loc, recurrence.TimeOfDay{}),
	}
}

// collect expands events, reminders and deadlines of doc inside win.
func (s *Server) collect(doc *source.Document, win agendaWindow) ([]model.Occurrence, agenda.ExpandResult, error) {
	cfg := agenda.ExpandConfig{
		DisplayLocation: win.loc,
		RangeStart:      win.start,
		RangeEnd:        win.end,
		Limits:          s.cfg.Limits(),
		Categories:      doc.Categories,
	}
	res, err := s.expander.ExpandOccurrences(doc.Events, cfg)
	if err != nil {
		return nil, res, err
	}
	reminders, err := agenda.Reminders(doc.Reminders, cfg)
	if err != nil {
		return nil, res, err
	}
	deadlines, err := agenda.Deadlines(doc.Goals, doc.SubTasks, cfg)
	if err != nil {
		return nil, res, err
	}

	occs := make([]model.Occurrence, 0, len(res.Occurrences)+len(reminders)+len(deadlines))
	occs = append(occs, res.Occurrences...)
	occs = append(occs, reminders...)
	occs = append(occs, deadlines...)
	agenda.AttachTodos(occs, doc.Todos)
	agenda.SortOccurrences(occs)
	return occs, res, nil
}

func withCountdowns(occs []model.Occurrence, now time.Time) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		dto := occurrenceDTO{Occurrence: occ}
		if occ.Kind == model.KindEvent {
			dto.Countdown = agenda.Countdown(now, occ.Start)
		}
		out = append(out, dto)
	}
	return out
}

// handleEvents returns expanded occurrences around today.
//
// GET /api/events?days=30&backfill=0
//   - days:     how many days ahead to include (default horizon_days)
//   - backfill: how many past days to include (default backfill_days)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	doc, loadedAt := s.document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "events not loaded yet")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), s.cfg.BackfillDays)
	if backfill < 0 {
		backfill = 0
	}

	now := s.now()
	loc := s.location(doc)
	today := recurrence.DateOf(now.In(loc))
	key := today.String() + "/" + strconv.Itoa(days) + "/" + strconv.Itoa(backfill)

	s.eventsMu.RLock()
	ec := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		resp := ec.resp
		resp.Occurrences = withCountdowns(ec.occs, now)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	win := s.window(doc, today.AddDays(-backfill), today.AddDays(days))
	appLog.Debug("api events request",
		"days", days,
		"backfill", backfill,
		"range_start", win.start.Format(time.RFC3339),
		"range_end", win.end.Format(time.RFC3339),
		"timezone", win.loc.String(),
	)

	occs, res, err := s.collect(doc, win)
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	resp := eventsResponse{
		ByDay:           instanceKeys(agenda.BucketByDay(occs, win.loc)),
		ByWeek:          instanceKeys(agenda.BucketByWeek(occs, win.loc, s.cfg.FirstWeekday())),
		TruncatedEvents: res.TruncatedEvents,
		InvalidEvents:   res.InvalidEvents,
		RangeStart:      win.start,
		RangeEnd:        win.end,
		DisplayTimeZone: win.loc.String(),
		WeekStart:       s.cfg.WeekStart,
		LoadedAt:        loadedAt,
	}

	s.eventsMu.Lock()
	for k, old := range s.eventsCache {
		if now.Sub(old.updatedAt) >= eventsCacheTTL {
			delete(s.eventsCache, k)
		}
	}
	s.eventsCache[key] = &eventsCache{occs: occs, resp: resp, updatedAt: now}
	s.eventsMu.Unlock()

	resp.Occurrences = withCountdowns(occs, now)
	writeJSON(w, http.StatusOK, resp)
}

func instanceKeys(buckets map[string][]model.Occurrence) map[string][]string {
	out := make(map[string][]string, len(buckets))
	for key, bucket := range buckets {
		for _, occ := range bucket {
			out[key] = append(out[key], occ.InstanceKey)
		}
	}
	return out
}

// handleDay returns the occurrences of one calendar day and the day planner
// slots with the stored plan's tasks.
//
// GET /api/day?date=2024-03-10&from=9&to=17 (defaults: today, planner config)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	doc, loadedAt := s.document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "events not loaded yet")
		return
	}

	q := r.URL.Query()
	now := s.now()
	loc := s.location(doc)
	day := recurrence.DateOf(now.In(loc))
	if raw := q.Get("date"); raw != "" {
		d, err := recurrence.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		day = d
	}

	win := s.window(doc, day, day)
	occs, res, err := s.collect(doc, win)
	if err != nil {
		appLog.Error("api day: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	slots := agenda.PlannerSlots(occs, day, win.loc,
		parseIntDefault(q.Get("from"), s.cfg.Planner.StartHour),
		parseIntDefault(q.Get("to"), s.cfg.Planner.EndHour))
	agenda.FillTasks(slots, agenda.PlanFor(doc.DayPlans, day))

	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences:     withCountdowns(agenda.OnDay(occs, day, win.loc), now),
		Slots:           slots,
		TruncatedEvents: res.TruncatedEvents,
		InvalidEvents:   res.InvalidEvents,
		RangeStart:      win.start,
		RangeEnd:        win.end,
		DisplayTimeZone: win.loc.String(),
		WeekStart:       s.cfg.WeekStart,
		LoadedAt:        loadedAt,
	})
}

// expandResponse is the JSON response shape for /api/expand.
type expandResponse struct {
	Kind        recurrence.Kind         `json:"kind"`
	Valid       bool                    `json:"valid"`
	Error       string                  `json:"error,omitempty"`
	Dates       []string                `json:"dates"`
	Truncated   bool                    `json:"truncated"`
	RRule       string                  `json:"rrule,omitempty"`
	Occurrences []recurrence.Occurrence `json:"occurrences,omitempty"`
}

// handleExpand previews a snooze descriptor before it is saved.
//
// POST /api/expand?target=2024-03-10T09:00&tz=Europe/Berlin
// with the descriptor blob as body. Malformed descriptors are reported in
// the response, never as a server error.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDescriptorBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "descriptor too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	q := r.URL.Query()
	loc := s.location(nil)
	if tz := q.Get("tz"); tz != "" {
		l, err := recurrence.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tz")
			return
		}
		loc = l
	}

	var base time.Time
	clock := recurrence.TimeOfDay{}
	if target := q.Get("target"); target != "" {
		t, _, err := recurrence.ParseMoment(target, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target")
			return
		}
		base = t.In(loc)
		clock = recurrence.ClockOf(base)
	}

	d := recurrence.Parse(body)
	resp := expandResponse{Kind: d.Kind(), Valid: true, Dates: []string{}}
	if err := recurrence.Validate(d); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	limits := s.cfg.Limits()
	exp := limits.Expand(d)
	if exp.Dates != nil {
		resp.Dates = exp.Dates
	}
	resp.Truncated = exp.Truncated
	if opt, ok := recurrence.RRuleOption(d, limits, loc, clock); ok {
		resp.RRule = opt.RRuleString()
	}
	if !base.IsZero() {
		resp.Occurrences = recurrence.Merge(base, exp.Dates, loc)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar serves the iCalendar feed.
//
// GET /calendar.ics?days=30
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	doc, _ := s.document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "events not loaded yet")
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	now := s.now()
	loc := s.location(doc)
	today := recurrence.DateOf(now.In(loc))
	win := s.window(doc, today.AddDays(-s.cfg.BackfillDays), today.AddDays(days))

	out, err := ics.Export(doc, ics.ExportConfig{
		Name:       "trackmyevents",
		Location:   win.loc,
		RangeStart: win.start,
		RangeEnd:   win.end,
		Limits:     s.cfg.Limits(),
		Now:        now,
	})
	if err != nil {
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="trackmyevents.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// Package ics renders events, their snooze series and monthly reminders as
// an iCalendar feed.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"trackmyevents/internal/agenda"
	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
	"trackmyevents/internal/source"
)

const (
	productID   = "-//trackmyevents//EN"
	uidDomain   = "@trackmyevents"
	timedLength = 30 * time.Minute
	localLayout = "20060102T150405"
)

// ExportConfig controls feed generation.
type ExportConfig struct {
	// Name is the calendar name shown by clients.
	Name string
	// Location is the timezone events are written in. If nil, UTC is used.
	Location *time.Location
	// RangeStart / RangeEnd bound monthly reminders, which repeat forever,
	// and goal deadlines. Events and snooze series are exported whole.
	RangeStart time.Time
	RangeEnd   time.Time
	Limits     recurrence.Limits
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// Export renders doc as an iCalendar document.
//
// Each event yields a VEVENT for its own target date. A snooze series that a
// COUNT-bounded RRULE reproduces exactly becomes one more VEVENT carrying
// that rule, with an EXDATE when the rule would repeat the target date; any
// other series is written out one VEVENT per generated day.
func Export(doc *source.Document, cfg ExportConfig) (string, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Name == "" {
		cfg.Name = "trackmyevents"
	}

	window := agenda.ExpandConfig{
		DisplayLocation: cfg.Location,
		RangeStart:      cfg.RangeStart,
		RangeEnd:        cfg.RangeEnd,
	}
	reminders, err := agenda.Reminders(doc.Reminders, window)
	if err != nil {
		return "", err
	}
	deadlines, err := agenda.Deadlines(doc.Goals, doc.SubTasks, window)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(cfg.Name)
	cal.SetXWRTimezone(cfg.Location.String())

	w := writer{cal: cal, cfg: cfg}
	for _, ev := range doc.Events {
		w.event(ev, agenda.CategoryPath(doc.Categories, ev.CategoryID))
	}
	for _, r := range reminders {
		w.dated(r, "Reminder")
	}
	for _, d := range deadlines {
		w.dated(d, "Goal")
	}

	return cal.Serialize(), nil
}

type writer struct {
	cal *ical.Calendar
	cfg ExportConfig
}

// slot is when a VEVENT starts: a wall clock instant, or a whole day.
type slot struct {
	start  time.Time
	allDay bool
}

func (w writer) event(ev model.Event, category string) {
	loc := w.cfg.Location
	base, hasClock, err := recurrence.ParseMoment(ev.TargetDate, loc)
	if err != nil {
		appLog.Error("export: skipping event with invalid target date", err, "event", ev.ID)
		return
	}
	base = base.In(loc)

	orig := w.vevent(ev.ID+uidDomain, ev, category)
	w.setSlot(orig, slot{start: base, allDay: !hasClock})

	desc := agenda.Descriptor(ev)
	if desc == nil {
		return
	}
	if inv, ok := desc.(recurrence.Invalid); ok {
		appLog.Error("export: skipping invalid snooze descriptor", inv.Err, "event", ev.ID)
		return
	}

	exp := w.cfg.Limits.Expand(desc)
	var repeats []recurrence.Date
	for _, occ := range recurrence.Merge(base, exp.Dates, loc) {
		if occ.IsOriginal {
			continue
		}
		day, err := recurrence.ParseDate(occ.Date)
		if err != nil {
			continue
		}
		repeats = append(repeats, day)
	}
	if len(repeats) == 0 {
		return
	}

	clock := recurrence.ClockOf(base)
	tod, hasOverride := recurrence.TimeOfDayOverride(desc)
	if hasOverride {
		clock = tod
	}
	allDay := !hasClock && !hasOverride

	if opt, ok := recurrence.RRuleOption(desc, w.cfg.Limits, loc, clock); ok {
		series := w.vevent(ev.ID+"-snooze"+uidDomain, ev, category)
		w.setSlot(series, slot{start: opt.Dtstart, allDay: allDay})
		series.AddProperty(ical.ComponentPropertyRrule, opt.RRuleString())
		if len(repeats) < len(exp.Dates) {
			// the target date is already its own VEVENT
			baseDay := recurrence.DateOf(base)
			w.exclude(series, slot{start: baseDay.At(loc, clock), allDay: allDay})
		}
		return
	}

	for _, day := range repeats {
		v := w.vevent(ev.ID+"-"+day.String()+uidDomain, ev, category)
		w.setSlot(v, slot{start: day.At(loc, clock), allDay: allDay})
	}
}

// exclude adds an EXDATE in the same value type as the series DTSTART.
func (w writer) exclude(v *ical.VEvent, s slot) {
	switch {
	case s.allDay:
		v.AddProperty(ical.ComponentPropertyExdate, s.start.Format("20060102"),
			&ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE"}})
	case s.start.Location() == time.UTC:
		v.AddProperty(ical.ComponentPropertyExdate, s.start.Format(localLayout+"Z"))
	default:
		v.AddProperty(ical.ComponentPropertyExdate, s.start.Format(localLayout),
			&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{s.start.Location().String()}})
	}
}

// dated writes a reminder or deadline as an all-day VEVENT.
func (w writer) dated(occ model.Occurrence, category string) {
	v := w.cal.AddEvent(source.StableID(string(occ.Kind), occ.InstanceKey) + uidDomain)
	v.SetDtStampTime(w.cfg.Now)
	v.SetSummary(occ.Title)
	if occ.Description != "" {
		v.SetDescription(occ.Description)
	}
	v.SetProperty(ical.ComponentPropertyCategories, category)
	if occ.IsCompleted {
		v.SetProperty(ical.ComponentPropertyStatus, "COMPLETED")
	}
	w.setSlot(v, slot{start: occ.Start, allDay: true})
}

func (w writer) vevent(uid string, ev model.Event, category string) *ical.VEvent {
	v := w.cal.AddEvent(uid)
	v.SetDtStampTime(w.cfg.Now)
	v.SetSummary(ev.Title)
	if ev.Description != "" {
		v.SetDescription(ev.Description)
	}
	if category != "" {
		v.SetProperty(ical.ComponentPropertyCategories, category)
	}
	return v
}

// setSlot writes DTSTART/DTEND. Timed values outside UTC carry a TZID so
// RRULE steps stay on local wall clock time across DST changes.
func (w writer) setSlot(v *ical.VEvent, s slot) {
	if s.allDay {
		day := time.Date(s.start.Year(), s.start.Month(), s.start.Day(), 0, 0, 0, 0, time.UTC)
		v.SetAllDayStartAt(day)
		v.SetAllDayEndAt(day.AddDate(0, 0, 1))
		return
	}

	end := s.start.Add(timedLength)
	if s.start.Location() == time.UTC {
		v.SetStartAt(s.start)
		v.SetEndAt(end)
		return
	}
	tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{s.start.Location().String()}}
	v.SetProperty(ical.ComponentPropertyDtStart, s.start.Format(localLayout), tzid)
	v.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localLayout), tzid)
}

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trackmyevents/internal/agenda"
	"trackmyevents/internal/ics"
	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
	"trackmyevents/internal/source"
)

func (a *app) location(doc *source.Document) (*time.Location, error) {
	name := a.cfg.Timezone
	if doc != nil && doc.Preferences.Timezone != "" {
		name = doc.Preferences.Timezone
	}
	return recurrence.LoadLocation(name)
}

func (a *app) expandCommand() *cobra.Command {
	var target, tz string
	var withRule bool
	cmd := &cobra.Command{
		Use:   "expand DESCRIPTOR",
		Short: "Print the days a snooze descriptor generates",
		Example: `  trackmyevents expand '{"kind":"daily","startDate":"2024-03-10","endDate":"2024-03-12"}'
  trackmyevents expand --target 2024-03-10T09:00 '{"dates":["2024-03-20"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := recurrence.ParseStrict([]byte(args[0]))
			if err != nil {
				return fmt.Errorf("invalid descriptor: %w", err)
			}

			if tz == "" {
				tz = a.cfg.Timezone
			}
			loc, err := recurrence.LoadLocation(tz)
			if err != nil {
				return err
			}

			limits := a.cfg.Limits()
			exp := limits.Expand(d)
			if exp.Truncated {
				appLog.Warn("expansion truncated", "descriptor", fmt.Sprint(d), "limits", limits)
			}

			out := cmd.OutOrStdout()
			if target == "" {
				for _, day := range exp.Dates {
					fmt.Fprintln(out, day)
				}
			} else {
				base, _, err := recurrence.ParseMoment(target, loc)
				if err != nil {
					return fmt.Errorf("invalid target: %w", err)
				}
				for _, occ := range recurrence.Merge(base, exp.Dates, loc) {
					if occ.IsOriginal {
						fmt.Fprintln(out, occ.Date, "(original)")
						continue
					}
					fmt.Fprintln(out, occ.Date)
				}
			}

			if withRule {
				clock := recurrence.TimeOfDay{}
				if target != "" {
					if base, _, err := recurrence.ParseMoment(target, loc); err == nil {
						clock = recurrence.ClockOf(base.In(loc))
					}
				}
				opt, ok := recurrence.RRuleOption(d, limits, loc, clock)
				if !ok {
					fmt.Fprintln(out, "RRULE: not representable")
					return nil
				}
				fmt.Fprintln(out, "RRULE:"+opt.RRuleString())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Event target date; merged into the output as the original")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone (default: config timezone)")
	cmd.Flags().BoolVar(&withRule, "rrule", false, "Also print the equivalent RRULE, if any")
	return cmd
}

func (a *app) agendaCommand() *cobra.Command {
	var days int
	var dayFlag string
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List upcoming occurrences from the configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.loadDocument(cmd.Context())
			if err != nil {
				return err
			}
			loc, err := a.location(doc)
			if err != nil {
				return err
			}

			now := time.Now()
			first := recurrence.DateOf(now.In(loc)).AddDays(-a.cfg.BackfillDays)
			last := recurrence.DateOf(now.In(loc)).AddDays(days)
			if dayFlag != "" {
				day, err := recurrence.ParseDate(dayFlag)
				if err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
				first, last = day, day
			}

			occs, err := a.collect(doc, loc, first, last)
			if err != nil {
				return err
			}
			printAgenda(cmd.OutOrStdout(), occs, first, last, loc, now, a.cfg.FirstWeekday())
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Number of future days to list")
	cmd.Flags().StringVar(&dayFlag, "day", "", "List a single day (YYYY-MM-DD)")
	return cmd
}

// collect gathers events, reminders and deadlines between first and last.
func (a *app) collect(doc *source.Document, loc *time.Location, first, last recurrence.Date) ([]model.Occurrence, error) {
	cfg := agenda.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      first.At(loc, recurrence.TimeOfDay{}),
		RangeEnd:        last.At(loc, recurrence.TimeOfDay{}),
		Limits:          a.cfg.Limits(),
		Categories:      doc.Categories,
	}
	res, err := agenda.ExpandOccurrences(doc.Events, cfg)
	if err != nil {
		return nil, err
	}
	for _, id := range res.InvalidEvents {
		appLog.Warn("event has an invalid date or snooze descriptor", "event", id)
	}
	reminders, err := agenda.Reminders(doc.Reminders, cfg)
	if err != nil {
		return nil, err
	}
	deadlines, err := agenda.Deadlines(doc.Goals, doc.SubTasks, cfg)
	if err != nil {
		return nil, err
	}

	occs := append(res.Occurrences, reminders...)
	occs = append(occs, deadlines...)
	agenda.AttachTodos(occs, doc.Todos)
	agenda.SortOccurrences(occs)
	return occs, nil
}

func printAgenda(w io.Writer, occs []model.Occurrence, first, last recurrence.Date, loc *time.Location, now time.Time, weekStart time.Weekday) {
	var week recurrence.Date
	for day := first; !day.After(last); day = day.AddDays(1) {
		list := agenda.OnDay(occs, day, loc)
		if len(list) == 0 {
			continue
		}
		if ws := agenda.WeekOf(day, weekStart); ws != week {
			week = ws
			fmt.Fprintf(w, "== week of %s\n", ws)
		}
		fmt.Fprintf(w, "%s %s\n", day, day.Weekday().String()[:3])
		for _, occ := range list {
			line := "  "
			switch occ.Kind {
			case model.KindReminder:
				line += "reminder "
			case model.KindGoal:
				line += "goal     "
			case model.KindSubTask:
				line += "step     "
			default:
				line += occ.Start.In(loc).Format("15:04") + "    "
			}
			line += occ.Title
			if occ.Kind == model.KindSubTask && occ.Description != "" {
				line += " (" + occ.Description + ")"
			}
			if occ.Progress != "" {
				line += " " + occ.Progress
			}
			if occ.Category != "" {
				line += " [" + occ.Category + "]"
			}
			if occ.Kind == model.KindEvent {
				if !occ.IsOriginal {
					line += " (snoozed)"
				}
				line += "  " + agenda.Countdown(now, occ.Start)
			}
			if occ.IsCompleted {
				line += " (done)"
			}
			fmt.Fprintln(w, line)
			for _, td := range occ.Todos {
				mark := "[ ]"
				if td.IsDone {
					mark = "[x]"
				}
				fmt.Fprintf(w, "           %s %s\n", mark, td.Content)
			}
		}
	}
}

func (a *app) plannerCommand() *cobra.Command {
	var dayFlag string
	var from, to int
	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Show the day planner slots of one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.loadDocument(cmd.Context())
			if err != nil {
				return err
			}
			loc, err := a.location(doc)
			if err != nil {
				return err
			}

			day := recurrence.DateOf(time.Now().In(loc))
			if dayFlag != "" {
				if day, err = recurrence.ParseDate(dayFlag); err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
			}
			if !cmd.Flags().Changed("from") {
				from = a.cfg.Planner.StartHour
			}
			if !cmd.Flags().Changed("to") {
				to = a.cfg.Planner.EndHour
			}

			occs, err := a.collect(doc, loc, day, day)
			if err != nil {
				return err
			}
			slots := agenda.PlannerSlots(occs, day, loc, from, to)
			agenda.FillTasks(slots, agenda.PlanFor(doc.DayPlans, day))
			printPlanner(cmd.OutOrStdout(), day, slots)
			return nil
		},
	}
	cmd.Flags().StringVar(&dayFlag, "day", "", "Day to show (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&from, "from", 9, "First slot hour (default: planner config)")
	cmd.Flags().IntVar(&to, "to", 17, "Last slot hour (default: planner config)")
	return cmd
}

func printPlanner(w io.Writer, day recurrence.Date, slots []agenda.Slot) {
	fmt.Fprintf(w, "%s %s\n", day, day.Weekday().String()[:3])
	for _, slot := range slots {
		line := "  " + slot.Range
		if slot.Task != "" {
			line += "  " + slot.Task
		}
		for _, occ := range slot.Occurrences {
			line += "  <" + occ.Title + ">"
		}
		fmt.Fprintln(w, line)
	}
}

func (a *app) exportCommand() *cobra.Command {
	var outPath string
	var days int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the configured source as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.loadDocument(cmd.Context())
			if err != nil {
				return err
			}
			loc, err := a.location(doc)
			if err != nil {
				return err
			}

			now := time.Now()
			today := recurrence.DateOf(now.In(loc))
			out, err := ics.Export(doc, ics.ExportConfig{
				Name:       "trackmyevents",
				Location:   loc,
				RangeStart: today.AddDays(-a.cfg.BackfillDays).At(loc, recurrence.TimeOfDay{}),
				RangeEnd:   today.AddDays(days).At(loc, recurrence.TimeOfDay{}),
				Limits:     a.cfg.Limits(),
				Now:        now,
			})
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
				return err
			}
			appLog.Info("calendar exported", "path", outPath, "events", len(doc.Events))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file, - for stdout")
	cmd.Flags().IntVar(&days, "days", 365, "Days of monthly reminders to include")
	return cmd
}

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Event is a stored countdown event before snooze expansion.
type Event struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// TargetDate is the ISO date or datetime the event counts down to.
	// Values without an offset are wall clock time in the user's timezone.
	TargetDate string `yaml:"targetDate" json:"targetDate"`

	CategoryID string `yaml:"categoryId,omitempty" json:"categoryId,omitempty"`

	// SnoozeDates is the opaque recurrence descriptor blob, see
	// internal/recurrence.
	SnoozeDates Snooze `yaml:"snoozeDates,omitempty" json:"snoozeDates,omitempty"`

	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// Snooze holds a descriptor blob as JSON text. In YAML documents it may be
// written either as a JSON string or as a nested mapping/sequence.
type Snooze string

func (s *Snooze) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			*s = ""
			return nil
		}
		*s = Snooze(value.Value)
		return nil
	}

	var v any
	if err := value.Decode(&v); err != nil {
		return fmt.Errorf("decode snoozeDates: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snoozeDates: %w", err)
	}
	*s = Snooze(data)
	return nil
}

// Category groups events. Categories nest through ParentCategoryID.
type Category struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Description      string `yaml:"description,omitempty" json:"description,omitempty"`
	Order            int    `yaml:"order,omitempty" json:"order,omitempty"`
	ParentCategoryID string `yaml:"parentCategoryId,omitempty" json:"parentCategoryId,omitempty"`
}

// MonthlyReminder is a bill-style reminder due on a day of the month.
type MonthlyReminder struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Year  int `yaml:"year" json:"year"`
	Month int `yaml:"month" json:"month"`
	Day   int `yaml:"day" json:"day"`

	// IsRecurring reminders repeat every month on Day; others only apply to
	// Year/Month.
	IsRecurring bool `yaml:"isRecurring" json:"isRecurring"`
	IsCompleted bool `yaml:"isCompleted" json:"isCompleted"`
}

// Todo is a checklist item, optionally attached to an event or a category.
type Todo struct {
	ID         string `yaml:"id" json:"id"`
	Content    string `yaml:"content" json:"content"`
	IsDone     bool   `yaml:"isDone" json:"isDone"`
	EventID    string `yaml:"eventId,omitempty" json:"eventId,omitempty"`
	CategoryID string `yaml:"categoryId,omitempty" json:"categoryId,omitempty"`
}

// PlanTasks maps a planner slot start ("09:30") to the task written there.
type PlanTasks map[string]string

// UnmarshalYAML accepts a mapping or the stored JSON text of one.
func (p *PlanTasks) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = nil
		if value.Tag == "!!null" || value.Value == "" {
			return nil
		}
		var m map[string]string
		if err := json.Unmarshal([]byte(value.Value), &m); err != nil {
			return fmt.Errorf("decode tasks: %w", err)
		}
		*p = m
		return nil
	}
	var m map[string]string
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("decode tasks: %w", err)
	}
	*p = m
	return nil
}

// DayPlan holds the planner tasks of one calendar day.
type DayPlan struct {
	ID    string    `yaml:"id" json:"id"`
	Date  string    `yaml:"date" json:"date"`
	Tasks PlanTasks `yaml:"tasks" json:"tasks"`
}

// Goal is a dated objective broken down into subtasks.
type Goal struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	DueDate     string `yaml:"dueDate,omitempty" json:"dueDate,omitempty"`
	IsCompleted bool   `yaml:"isCompleted" json:"isCompleted"`
}

type SubTask struct {
	ID          string `yaml:"id" json:"id"`
	GoalID      string `yaml:"goalId" json:"goalId"`
	Content     string `yaml:"content" json:"content"`
	DueDate     string `yaml:"dueDate,omitempty" json:"dueDate,omitempty"`
	IsCompleted bool   `yaml:"isCompleted" json:"isCompleted"`
	Order       int    `yaml:"order,omitempty" json:"order,omitempty"`
}

type UserPreferences struct {
	// Timezone is an IANA zone name. Empty means UTC.
	Timezone              string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	EnableDailyReminders  bool   `yaml:"enableDailyReminders" json:"enableDailyReminders"`
	EnableWeeklyReminders bool   `yaml:"enableWeeklyReminders" json:"enableWeeklyReminders"`
}

type OccurrenceKind string

const (
	KindEvent    OccurrenceKind = "event"
	KindReminder OccurrenceKind = "reminder"
	KindGoal     OccurrenceKind = "goal"
	KindSubTask  OccurrenceKind = "subtask"
)

// Occurrence is one concrete appearance of an event or reminder on the
// calendar, after snooze expansion and timezone normalization.
type Occurrence struct {
	EventID     string         `json:"eventId"`
	Kind        OccurrenceKind `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`

	// Date is the calendar day (YYYY-MM-DD) in the display timezone.
	Date string `json:"date"`
	// Start is in the display timezone.
	Start time.Time `json:"start"`

	// IsOriginal marks the event's own target date as opposed to a
	// generated snooze repeat.
	IsOriginal  bool `json:"isOriginal"`
	IsCompleted bool `json:"isCompleted,omitempty"`

	// Progress is "done/total" subtasks on goal occurrences.
	Progress string `json:"progress,omitempty"`
	// Todos are the event's checklist items.
	Todos []Todo `json:"todos,omitempty"`

	// InstanceKey uniquely identifies this occurrence across refreshes.
	InstanceKey string `json:"instanceKey"`
}

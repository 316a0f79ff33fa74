// Package source loads the exported event document, either from a local
// file or from an HTTP(S) URL with an on-disk cache.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"trackmyevents/internal/model"
)

// Document is the exported state of one user's events. YAML and JSON
// exports decode the same way.
type Document struct {
	Events      []model.Event           `yaml:"events" json:"events"`
	Categories  []model.Category        `yaml:"categories" json:"categories"`
	Reminders   []model.MonthlyReminder `yaml:"reminders" json:"reminders"`
	Todos       []model.Todo            `yaml:"todos" json:"todos"`
	DayPlans    []model.DayPlan         `yaml:"dayPlans" json:"dayPlans"`
	Goals       []model.Goal            `yaml:"goals" json:"goals"`
	SubTasks    []model.SubTask         `yaml:"subTasks" json:"subTasks"`
	Preferences model.UserPreferences   `yaml:"preferences" json:"preferences"`
}

// Namespace derives stable IDs for records exported without one.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trackmyevents"))

// StableID returns a deterministic UUID for the given parts.
func StableID(parts ...string) string {
	return uuid.NewSHA1(Namespace, []byte(strings.Join(parts, "\x00"))).String()
}

// Decode parses a YAML or JSON document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	doc.fillIDs()
	return &doc, nil
}

func (d *Document) fillIDs() {
	for i := range d.Events {
		ev := &d.Events[i]
		if ev.ID == "" {
			ev.ID = StableID("event", ev.Title, ev.TargetDate)
		}
	}
	for i := range d.Categories {
		c := &d.Categories[i]
		if c.ID == "" {
			c.ID = StableID("category", c.Name, c.ParentCategoryID)
		}
	}
	for i := range d.Reminders {
		r := &d.Reminders[i]
		if r.ID == "" {
			r.ID = StableID("reminder", r.Title, strconv.Itoa(r.Year), strconv.Itoa(r.Month), strconv.Itoa(r.Day))
		}
	}
	for i := range d.Todos {
		td := &d.Todos[i]
		if td.ID == "" {
			td.ID = StableID("todo", td.Content, td.EventID, td.CategoryID)
		}
	}
	for i := range d.DayPlans {
		p := &d.DayPlans[i]
		if p.ID == "" {
			p.ID = StableID("dayplan", p.Date)
		}
	}
	for i := range d.Goals {
		g := &d.Goals[i]
		if g.ID == "" {
			g.ID = StableID("goal", g.Title, g.DueDate)
		}
	}
	for i := range d.SubTasks {
		st := &d.SubTasks[i]
		if st.ID == "" {
			st.ID = StableID("subtask", st.GoalID, st.Content, strconv.Itoa(st.Order))
		}
	}
}

// Loader resolves a source location into a Document.
type Loader struct {
	Fetcher *Fetcher
}

func NewLoader(cacheDir string) *Loader {
	return &Loader{Fetcher: NewFetcher(cacheDir, nil)}
}

// IsRemote reports whether location is fetched over HTTP.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Load reads location, a file path or an http(s) URL, and decodes it.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("source location is empty")
	}

	var data []byte
	if IsRemote(location) {
		if l.Fetcher == nil {
			l.Fetcher = NewFetcher("", nil)
		}
		res, err := l.Fetcher.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", redactURL(location), err)
		}
		data = res.Body
	} else {
		b, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		data = b
	}

	return Decode(data)
}

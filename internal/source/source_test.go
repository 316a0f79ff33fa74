package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmyevents/internal/model"
)

const sampleYAML = `
preferences:
  timezone: Europe/Berlin
  enableDailyReminders: true
categories:
  - id: home
    name: Home
events:
  - id: e1
    title: Water plants
    targetDate: "2024-03-10T18:30"
    categoryId: home
    snoozeDates:
      kind: daily
      startDate: "2024-03-10"
      endDate: "2024-03-12"
  - title: Dentist
    targetDate: "2024-03-11T09:00:00Z"
    snoozeDates: '{"dates":["2024-03-20"]}'
reminders:
  - title: Rent
    day: 1
    isRecurring: true
`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", doc.Preferences.Timezone)
	assert.True(t, doc.Preferences.EnableDailyReminders)
	require.Len(t, doc.Events, 2)

	assert.JSONEq(t, `{"kind":"daily","startDate":"2024-03-10","endDate":"2024-03-12"}`, string(doc.Events[0].SnoozeDates))
	assert.Equal(t, model.Snooze(`{"dates":["2024-03-20"]}`), doc.Events[1].SnoozeDates)

	assert.Equal(t, StableID("event", "Dentist", "2024-03-11T09:00:00Z"), doc.Events[1].ID)
	require.Len(t, doc.Reminders, 1)
	assert.NotEmpty(t, doc.Reminders[0].ID)

	again, err := Decode([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestDecodePlannerRecords(t *testing.T) {
	doc, err := Decode([]byte(`
todos:
  - content: Buy soil
    eventId: plants
  - content: Loose end
    isDone: true
dayPlans:
  - date: "2024-03-11"
    tasks:
      "09:00": Inbox
  - date: "2024-03-12"
    tasks: '{"10:30":"Review"}'
  - date: "2024-03-13"
goals:
  - id: tax
    title: File taxes
    dueDate: "2024-04-15"
subTasks:
  - goalId: tax
    content: Collect receipts
    order: 1
`))
	require.NoError(t, err)

	require.Len(t, doc.Todos, 2)
	assert.Equal(t, "plants", doc.Todos[0].EventID)
	assert.Equal(t, StableID("todo", "Buy soil", "plants", ""), doc.Todos[0].ID)
	assert.True(t, doc.Todos[1].IsDone)

	require.Len(t, doc.DayPlans, 3)
	assert.Equal(t, model.PlanTasks{"09:00": "Inbox"}, doc.DayPlans[0].Tasks)
	assert.Equal(t, model.PlanTasks{"10:30": "Review"}, doc.DayPlans[1].Tasks)
	assert.Empty(t, doc.DayPlans[2].Tasks)
	assert.Equal(t, StableID("dayplan", "2024-03-12"), doc.DayPlans[1].ID)

	require.Len(t, doc.Goals, 1)
	assert.Equal(t, "tax", doc.Goals[0].ID)
	require.Len(t, doc.SubTasks, 1)
	assert.NotEmpty(t, doc.SubTasks[0].ID)

	_, err = Decode([]byte("dayPlans:\n  - date: \"2024-03-11\"\n    tasks: 'not json'\n"))
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	doc, err := Decode([]byte(`{"events":[{"id":"x","title":"T","targetDate":"2024-01-01","snoozeDates":"{\"kind\":\"once\",\"startDate\":\"2024-01-02\"}"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Events, 1)
	assert.Equal(t, model.Snooze(`{"kind":"once","startDate":"2024-01-02"}`), doc.Events[0].SnoozeDates)

	empty, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Events)

	_, err = Decode([]byte("events: [oops"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	l := NewLoader(t.TempDir())
	doc, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, doc.Events, 2)

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = l.Load(context.Background(), " ")
	assert.Error(t, err)
}

func TestFetcherConditionalAndFallback(t *testing.T) {
	var hits, conditional atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleYAML))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()

	res, err := f.Fetch(ctx, srv.URL+"/export.yaml?token=secret")
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, sampleYAML, string(res.Body))

	res, err = f.Fetch(ctx, srv.URL+"/export.yaml?token=secret")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(1), conditional.Load())
	assert.Equal(t, sampleYAML, string(res.Body))

	fail.Store(true)
	res, err = f.Fetch(ctx, srv.URL+"/export.yaml?token=secret")
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = f.Fetch(ctx, srv.URL+"/other.yaml")
	assert.Error(t, err)
	assert.Equal(t, int32(4), hits.Load())
}

func TestLoaderRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleYAML))
	}))
	defer srv.Close()

	l := &Loader{Fetcher: NewFetcher(t.TempDir(), srv.Client())}
	doc, err := l.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, doc.Events, 2)
	assert.True(t, IsRemote("HTTPS://example.com/x"))
	assert.False(t, IsRemote("/tmp/events.yaml"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/feed.yaml?token=abc"))
	assert.Equal(t, "source://...(redacted)", redactURL("not a url"))
}

package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmyevents/internal/model"
)

func TestExpanderMemoizes(t *testing.T) {
	events := []model.Event{
		{ID: "a", TargetDate: "2024-03-10T08:00", SnoozeDates: `{"kind":"daily","startDate":"2024-03-10","endDate":"2024-03-20"}`},
		{ID: "b", TargetDate: "2024-03-12"},
	}
	cfg := ExpandConfig{
		RangeStart: day("2024-03-01T00:00:00Z"),
		RangeEnd:   day("2024-03-31T00:00:00Z"),
	}

	x := NewExpander(MemoConfig{TTL: time.Minute})
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	x.Memo.now = func() time.Time { return clock }

	want, err := ExpandOccurrences(events, cfg)
	require.NoError(t, err)

	got, err := x.ExpandOccurrences(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, MemoStats{Entries: 2, Hits: 0, Misses: 2}, x.Memo.Stats())

	got, err = x.ExpandOccurrences(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, x.Memo.Stats().Hits)

	// a narrower window reuses the cached expansions
	narrow := cfg
	narrow.RangeEnd = day("2024-03-11T00:00:00Z")
	got, err = x.ExpandOccurrences(events, narrow)
	require.NoError(t, err)
	assert.Len(t, got.Occurrences, 2)
	assert.Equal(t, 4, x.Memo.Stats().Hits)

	// an edited event misses
	events[1].TargetDate = "2024-03-13"
	_, err = x.ExpandOccurrences(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, x.Memo.Stats().Misses)

	clock = clock.Add(2 * time.Minute)
	_, err = x.ExpandOccurrences(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, x.Memo.Stats().Misses)
}

func TestMemoEvictsOldest(t *testing.T) {
	m := NewMemo(MemoConfig{TTL: time.Hour, MaxEntries: 1})
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	x := &Expander{Memo: m}

	cfg := ExpandConfig{RangeStart: day("2024-03-01T00:00:00Z"), RangeEnd: day("2024-03-31T00:00:00Z")}
	_, err := x.ExpandOccurrences([]model.Event{{ID: "a", TargetDate: "2024-03-02"}}, cfg)
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	_, err = x.ExpandOccurrences([]model.Event{{ID: "b", TargetDate: "2024-03-03"}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Stats().Entries)

	// "a" was evicted
	_, err = x.ExpandOccurrences([]model.Event{{ID: "a", TargetDate: "2024-03-02"}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Stats().Misses)

	m.Reset()
	assert.Equal(t, 0, m.Stats().Entries)
}

func TestMemoSeparatesSameNamedZones(t *testing.T) {
	x := NewExpander(MemoConfig{TTL: time.Hour})
	events := []model.Event{{ID: "a", TargetDate: "2024-03-10T08:00"}}

	east := ExpandConfig{
		DisplayLocation: time.FixedZone("Local", 2*3600),
		RangeStart:      day("2024-03-01T00:00:00Z"),
		RangeEnd:        day("2024-03-31T00:00:00Z"),
	}
	west := east
	west.DisplayLocation = time.FixedZone("Local", -5*3600)

	a, err := x.ExpandOccurrences(events, east)
	require.NoError(t, err)
	b, err := x.ExpandOccurrences(events, west)
	require.NoError(t, err)

	require.Len(t, a.Occurrences, 1)
	require.Len(t, b.Occurrences, 1)
	assert.Equal(t, 0, x.Memo.Stats().Hits)
	assert.Equal(t, time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC), a.Occurrences[0].Start.UTC())
	assert.Equal(t, time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC), b.Occurrences[0].Start.UTC())
}

package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

func TestBucketByDay(t *testing.T) {
	t.Parallel()

	ny := time.FixedZone("EST", -5*60*60)
	occs := []model.Occurrence{
		{EventID: "a", Start: time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
		{EventID: "b", Start: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)},
		{EventID: "c", Start: time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)},
	}

	buckets := BucketByDay(occs, ny)
	require.Len(t, buckets, 2)
	assert.Len(t, buckets["2024-03-10"], 2)
	assert.Len(t, buckets["2024-03-11"], 1)

	onDay := OnDay(occs, recurrence.MustDate("2024-03-10"), ny)
	require.Len(t, onDay, 2)
	assert.Equal(t, "a", onDay[0].EventID)
	assert.Equal(t, "b", onDay[1].EventID)

	assert.Len(t, OnDay(occs, recurrence.MustDate("2024-03-10"), time.UTC), 1)
}

func TestWeekOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day   string
		first time.Weekday
		want  string
	}{
		{"2024-03-10", time.Monday, "2024-03-04"},
		{"2024-03-11", time.Monday, "2024-03-11"},
		{"2024-03-17", time.Monday, "2024-03-11"},
		{"2024-03-10", time.Sunday, "2024-03-10"},
		{"2024-03-16", time.Sunday, "2024-03-10"},
		{"2024-01-02", time.Monday, "2024-01-01"},
		{"2024-01-01", time.Sunday, "2023-12-31"},
	}
	for _, tt := range tests {
		got := WeekOf(recurrence.MustDate(tt.day), tt.first)
		assert.Equal(t, tt.want, got.String(), "%s from %s", tt.day, tt.first)
	}
}

func TestBucketByWeek(t *testing.T) {
	t.Parallel()

	// 2024-03-11 02:00 UTC is still sunday the 10th at UTC-5
	est := time.FixedZone("EST", -5*60*60)
	occs := []model.Occurrence{
		{EventID: "a", Start: time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)},
		{EventID: "b", Start: time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)},
	}

	utc := BucketByWeek(occs, time.UTC, time.Monday)
	assert.Len(t, utc["2024-03-11"], 2)

	local := BucketByWeek(occs, est, time.Monday)
	require.Len(t, local["2024-03-04"], 1)
	assert.Equal(t, "a", local["2024-03-04"][0].EventID)
	assert.Len(t, local["2024-03-11"], 1)
}

func TestCategoryPath(t *testing.T) {
	t.Parallel()

	cats := []model.Category{
		{ID: "work", Name: "Work"},
		{ID: "proj", Name: "Projects", ParentCategoryID: "work"},
		{ID: "alpha", Name: "Alpha", ParentCategoryID: "proj"},
		{ID: "x", Name: "X", ParentCategoryID: "y"},
		{ID: "y", Name: "Y", ParentCategoryID: "x"},
	}

	assert.Equal(t, "Work / Projects / Alpha", CategoryPath(cats, "alpha"))
	assert.Equal(t, "Work", CategoryPath(cats, "work"))
	assert.Equal(t, "Y / X", CategoryPath(cats, "x"))
	assert.Equal(t, "", CategoryPath(cats, "missing"))
	assert.Equal(t, "", CategoryPath(cats, ""))
}

func TestCountdown(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		left time.Duration
		want string
	}{
		{3*24*time.Hour + 4*time.Hour + 5*time.Minute, "3d 4h"},
		{4*time.Hour + 12*time.Minute + 30*time.Second, "4h 12m"},
		{12*time.Minute + 5*time.Second, "12m 5s"},
		{900 * time.Millisecond, "0m 0s"},
		{0, "passed"},
		{-time.Hour, "passed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Countdown(now, now.Add(tt.left)), tt.left.String())
	}
}

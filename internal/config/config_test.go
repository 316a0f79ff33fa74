package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 500, cfg.Recurrence.MaxOccurrences)
	assert.Equal(t, time.Monday, cfg.FirstWeekday())
	assert.Nil(t, cfg.BasicAuth)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
week_start: Sunday
timezone: Europe/Berlin
recurrence:
  max_occurrences: 50
basic_auth:
  username: ""
  password: ""
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, time.Sunday, cfg.FirstWeekday())
	assert.Equal(t, PlannerConfig{StartHour: 9, EndHour: 17}, cfg.Planner)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.Equal(t, 30, cfg.HorizonDays)
	assert.Nil(t, cfg.BasicAuth)

	limits := cfg.Limits()
	assert.Equal(t, 50, limits.MaxOccurrences)
	assert.Equal(t, 90, limits.DefaultSpanDays)
	assert.Equal(t, 730, limits.MaxSpanDays)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	t.Setenv("TRACKMYEVENTS_LISTEN", "0.0.0.0:7000")
	t.Setenv("TRACKMYEVENTS_HORIZON_DAYS", "14")
	t.Setenv("TRACKMYEVENTS_RECURRENCE_MAX_SPAN_DAYS", "365")
	t.Setenv("TRACKMYEVENTS_PLANNER_START_HOUR", "7")
	t.Setenv("TRACKMYEVENTS_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("TRACKMYEVENTS_BASIC_AUTH_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
	assert.Equal(t, 14, cfg.HorizonDays)
	assert.Equal(t, 365, cfg.Recurrence.MaxSpanDays)
	assert.Equal(t, PlannerConfig{StartHour: 7, EndHour: 17}, cfg.Planner)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "secret", cfg.BasicAuth.Password)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	badCron := filepath.Join(dir, "cron.yaml")
	require.NoError(t, os.WriteFile(badCron, []byte("refresh: every now and then\n"), 0o600))
	_, err := Load(badCron)
	assert.ErrorContains(t, err, "refresh schedule")

	badZone := filepath.Join(dir, "zone.yaml")
	require.NoError(t, os.WriteFile(badZone, []byte("timezone: Nowhere/Special\n"), 0o600))
	_, err = Load(badZone)
	assert.Error(t, err)

	badHour := filepath.Join(dir, "hour.yaml")
	require.NoError(t, os.WriteFile(badHour, []byte("planner:\n  start_hour: 8\n  end_hour: 25\n"), 0o600))
	_, err = Load(badHour)
	assert.ErrorContains(t, err, "planner hour")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("listen: [unterminated\n"), 0o600))
	_, err = Load(broken)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Source = "https://example.com/events.yaml"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"trackmyevents/internal/recurrence"
)

// EnvPrefix prefixes every environment override, e.g. TRACKMYEVENTS_LISTEN.
const EnvPrefix = "TRACKMYEVENTS"

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RecurrenceConfig bounds snooze expansion.
type RecurrenceConfig struct {
	// DefaultSpanDays is how far an open-ended snooze series reaches.
	DefaultSpanDays int `yaml:"default_span_days" json:"default_span_days"`
	// MaxOccurrences caps a single series.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`
	// MaxSpanDays caps how far past its start a series may run.
	MaxSpanDays int `yaml:"max_span_days" json:"max_span_days"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// File enables a rotated log file next to stderr output.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// PlannerConfig sets the hours the day planner shows.
type PlannerConfig struct {
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used when the event document carries no
	// preference of its own (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts a week in agenda output.
	// Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for reloading the event source.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days to list.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// BackfillDays is the number of past days to list.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// Source is a path or http(s) URL of the exported event document.
	Source string `yaml:"source" json:"source"`
	// CacheDir holds the HTTP source cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	Planner    PlannerConfig    `yaml:"planner" json:"planner"`
	Log        LogConfig        `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen  = "127.0.0.1:8080"
	defaultRefresh = "*/15 * * * *"
	defaultSource  = "events.yaml"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     "UTC",
		WeekStart:    "monday",
		RefreshCron:  defaultRefresh,
		HorizonDays:  30,
		BackfillDays: 0,
		Source:       defaultSource,
		CacheDir:     defaultCacheDir(),
		Recurrence: RecurrenceConfig{
			DefaultSpanDays: recurrence.DefaultLimits.DefaultSpanDays,
			MaxOccurrences:  recurrence.DefaultLimits.MaxOccurrences,
			MaxSpanDays:     recurrence.DefaultLimits.MaxSpanDays,
		},
		Planner:   PlannerConfig{StartHour: 9, EndHour: 17},
		Log:       LogConfig{Level: "info"},
		BasicAuth: nil,
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "trackmyevents")
	}
	return filepath.Join(os.TempDir(), "trackmyevents")
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart)); c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday.
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.Source == "" {
		c.Source = def.Source
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Recurrence.DefaultSpanDays <= 0 {
		c.Recurrence.DefaultSpanDays = def.Recurrence.DefaultSpanDays
	}
	if c.Recurrence.MaxOccurrences <= 0 {
		c.Recurrence.MaxOccurrences = def.Recurrence.MaxOccurrences
	}
	if c.Recurrence.MaxSpanDays <= 0 {
		c.Recurrence.MaxSpanDays = def.Recurrence.MaxSpanDays
	}
	if c.Planner.StartHour == 0 && c.Planner.EndHour == 0 {
		c.Planner = def.Planner
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.RefreshCron, err)
	}
	if _, err := recurrence.LoadLocation(c.Timezone); err != nil {
		return err
	}
	for _, h := range []int{c.Planner.StartHour, c.Planner.EndHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("invalid planner hour %d", h)
		}
	}
	return nil
}

// FirstWeekday is the weekday WeekStart names.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Limits converts the recurrence section for the expander.
func (c *Config) Limits() recurrence.Limits {
	return recurrence.Limits{
		DefaultSpanDays: c.Recurrence.DefaultSpanDays,
		MaxOccurrences:  c.Recurrence.MaxOccurrences,
		MaxSpanDays:     c.Recurrence.MaxSpanDays,
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := recurrence.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - If the file exists, it is unmarshalled and normalized.
//
// In both cases TRACKMYEVENTS_* environment variables override file values
// before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on cfg. Only variables that are
// actually set take effect.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	strs := map[string]*string{
		"listen":     &cfg.Listen,
		"timezone":   &cfg.Timezone,
		"week_start": &cfg.WeekStart,
		"refresh":    &cfg.RefreshCron,
		"source":     &cfg.Source,
		"cache_dir":  &cfg.CacheDir,
		"log_level":  &cfg.Log.Level,
		"log_file":   &cfg.Log.File,
	}
	ints := map[string]*int{
		"horizon_days":                 &cfg.HorizonDays,
		"backfill_days":                &cfg.BackfillDays,
		"recurrence_default_span_days": &cfg.Recurrence.DefaultSpanDays,
		"recurrence_max_occurrences":   &cfg.Recurrence.MaxOccurrences,
		"recurrence_max_span_days":     &cfg.Recurrence.MaxSpanDays,
		"planner_start_hour":           &cfg.Planner.StartHour,
		"planner_end_hour":             &cfg.Planner.EndHour,
	}

	for key, dst := range strs {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	for key, dst := range ints {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	_ = v.BindEnv("basic_auth_username")
	_ = v.BindEnv("basic_auth_password")
	if v.IsSet("basic_auth_username") || v.IsSet("basic_auth_password") {
		if cfg.BasicAuth == nil {
			cfg.BasicAuth = &BasicAuthConfig{}
		}
		if v.IsSet("basic_auth_username") {
			cfg.BasicAuth.Username = v.GetString("basic_auth_username")
		}
		if v.IsSet("basic_auth_password") {
			cfg.BasicAuth.Password = v.GetString("basic_auth_password")
		}
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".trackmyevents-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

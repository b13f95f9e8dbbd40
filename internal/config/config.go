package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"schedcal/internal/model"
)

// ICSConfig describes a single ICS subscription whose events are imported
// into the scheduler.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup, event names and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Resource is the row imported events are placed on. Defaults to ID.
	Resource string `yaml:"resource" json:"resource"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SchedulerDefaults are applied to every event spec that leaves the
// corresponding field empty.
type SchedulerDefaults struct {
	// AvailableMonths lists allowed months, 1 = January ... 12 = December.
	AvailableMonths []int `yaml:"available_months" json:"available_months"`
	// AvailableWeekdays lists allowed weekdays, 0 or 7 = Sunday.
	AvailableWeekdays []int `yaml:"available_weekdays" json:"available_weekdays"`
	// AvailableTimeFrames lists allowed "HH:MM-HH:MM" windows.
	AvailableTimeFrames []string `yaml:"available_time_frames" json:"available_time_frames"`
	// RecurrenceCount caps recurrences that set no count; 0 = unbounded.
	RecurrenceCount int `yaml:"recurrence_count" json:"recurrence_count"`
	// MaxOccurrencesPerEvent is a safety cap on generated dates per event
	// so unbounded series cannot expand forever.
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`
}

// DefaultSchedulerDefaults returns the "everything allowed" policy.
func DefaultSchedulerDefaults() SchedulerDefaults {
	return SchedulerDefaults{
		AvailableMonths:        []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		AvailableWeekdays:      []int{1, 2, 3, 4, 5, 6, 7},
		AvailableTimeFrames:    []string{"00:00-23:59"},
		RecurrenceCount:        0,
		MaxOccurrencesPerEvent: 5000,
	}
}

// Normalize fills empty fields with DefaultSchedulerDefaults values.
func (d *SchedulerDefaults) Normalize() {
	def := DefaultSchedulerDefaults()
	if len(d.AvailableMonths) == 0 {
		d.AvailableMonths = def.AvailableMonths
	}
	if len(d.AvailableWeekdays) == 0 {
		d.AvailableWeekdays = def.AvailableWeekdays
	}
	if len(d.AvailableTimeFrames) == 0 {
		d.AvailableTimeFrames = def.AvailableTimeFrames
	}
	if d.RecurrenceCount < 0 {
		d.RecurrenceCount = 0
	}
	if d.MaxOccurrencesPerEvent <= 0 {
		d.MaxOccurrencesPerEvent = def.MaxOccurrencesPerEvent
	}
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Env selects the log encoder: "production" or "development".
	Env string `yaml:"env" json:"env"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Timezone is the IANA timezone the visible window is computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for rolling the visible window and re-importing ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WindowDays is the number of future days in the visible window.
	WindowDays int `yaml:"window_days" json:"window_days"`

	// BackfillDays is the number of past days in the visible window.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// SmallestHeader is the finest grid unit, e.g. {minute, 30}.
	SmallestHeader model.Header `yaml:"smallest_header" json:"smallest_header"`

	// LaneHeight is the vertical offset between stacked occurrences.
	LaneHeight float64 `yaml:"lane_height" json:"lane_height"`

	// EventsFile is the YAML file event specs are loaded from and saved to.
	EventsFile string `yaml:"events_file" json:"events_file"`

	// CacheDir holds the ICS subscription cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Defaults are the availability / recurrence defaults for events.
	Defaults SchedulerDefaults `yaml:"defaults" json:"defaults"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Env:            "development",
		LogLevel:       "INFO",
		Timezone:       "UTC",
		RefreshCron:    "*/15 * * * *",
		WindowDays:     7,
		BackfillDays:   1,
		SmallestHeader: model.Header{Unit: model.UnitMinute, Span: 30},
		LaneHeight:     32,
		EventsFile:     "./var/events.yaml",
		CacheDir:       "./var/ics-cache",
		Defaults:       DefaultSchedulerDefaults(),
		ICS:            []ICSConfig{},
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.Env {
	case "production", "development":
	default:
		c.Env = def.Env
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.WindowDays <= 0 {
		c.WindowDays = def.WindowDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	// Unknown units fall back to the default grid rather than disabling
	// generation altogether.
	if !c.SmallestHeader.Unit.Valid() {
		c.SmallestHeader = def.SmallestHeader
	}
	if c.SmallestHeader.Span <= 0 {
		c.SmallestHeader.Span = 1
	}
	if c.LaneHeight <= 0 {
		c.LaneHeight = def.LaneHeight
	}
	if c.EventsFile == "" {
		c.EventsFile = def.EventsFile
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	c.Defaults.Normalize()
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = c.ICS[i].Name
		}
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = c.ICS[i].URL
		}
		if c.ICS[i].Resource == "" {
			c.ICS[i].Resource = c.ICS[i].ID
		}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save normalizes cfg and writes it to path as YAML with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".schedcal-config-*.tmp")
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path under a temp name, then renames
// it over path. The parent directory is created with 0700 and the final
// file has 0600 permissions.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

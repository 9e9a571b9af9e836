// Package config loads the device configuration and persists the operator's
// runtime preferences.
//
// The configuration file is YAML with every tuning knob of the control
// loop; absent fields keep their defaults. The system mode is operator
// state, not configuration, and lives in its own small JSON document so a
// mode change never rewrites the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full device configuration.
type Config struct {
	// File paths for durable state.
	QueueFile    string `yaml:"queue_file"`
	IdentityFile string `yaml:"identity_file"`
	StateFile    string `yaml:"state_file"`
	EventLogFile string `yaml:"event_log_file"`

	// Queue bounds.
	MaxQueueSize       int `yaml:"max_queue_size"`
	QueueWarnThreshold int `yaml:"queue_warn_threshold"`

	// Loop timing.
	TapCooldown     time.Duration `yaml:"tap_cooldown"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
	UploadTimeout   time.Duration `yaml:"upload_timeout"`
	DebounceWindow  time.Duration `yaml:"debounce_window"`

	// Retry bounds.
	LiveRetryLimit int `yaml:"live_retry_limit"`
	QueueRetryWarn int `yaml:"queue_retry_warn"`
	InboxCapacity  int `yaml:"inbox_capacity"`

	// Attendance policy.
	OnTimeHour int `yaml:"on_time_hour"`
	MinYear    int `yaml:"min_year"`
	MaxYear    int `yaml:"max_year"`
}

// Default returns the configuration matching the reference device.
func Default() Config {
	return Config{
		QueueFile:          "attendance_queue.json",
		IdentityFile:       "user_database.json",
		StateFile:          "system_state.json",
		EventLogFile:       "events.db",
		MaxQueueSize:       100,
		QueueWarnThreshold: 80,
		TapCooldown:        30 * time.Second,
		SyncInterval:       30 * time.Second,
		WatchdogTimeout:    10 * time.Second,
		UploadTimeout:      10 * time.Second,
		DebounceWindow:     20 * time.Millisecond,
		LiveRetryLimit:     2,
		QueueRetryWarn:     5,
		InboxCapacity:      64,
		OnTimeHour:         9,
		MinYear:            2024,
		MaxYear:            2030,
	}
}

// Load reads a YAML config from path over the defaults. A missing file
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with.
func (c Config) Validate() error {
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("config: max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.QueueWarnThreshold <= 0 || c.QueueWarnThreshold > c.MaxQueueSize {
		return fmt.Errorf("config: queue_warn_threshold must be in 1..max_queue_size, got %d", c.QueueWarnThreshold)
	}
	if c.TapCooldown <= 0 {
		return fmt.Errorf("config: tap_cooldown must be positive, got %s", c.TapCooldown)
	}
	if c.WatchdogTimeout <= 0 {
		return fmt.Errorf("config: watchdog_timeout must be positive, got %s", c.WatchdogTimeout)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("config: upload_timeout must be positive, got %s", c.UploadTimeout)
	}
	if c.LiveRetryLimit < 0 {
		return fmt.Errorf("config: live_retry_limit must not be negative, got %d", c.LiveRetryLimit)
	}
	if c.OnTimeHour < 0 || c.OnTimeHour > 23 {
		return fmt.Errorf("config: on_time_hour must be an hour of day, got %d", c.OnTimeHour)
	}
	if c.MinYear > c.MaxYear {
		return fmt.Errorf("config: min_year %d exceeds max_year %d", c.MinYear, c.MaxYear)
	}
	return nil
}

// QueueFile paths etc. are relative to the data directory chosen by the
// CLI; Resolve prefixes each file path with dir.
func (c Config) Resolve(dir string) Config {
	join := func(name string) string {
		if name == "" || dir == "" {
			return name
		}
		return dir + string(os.PathSeparator) + name
	}
	c.QueueFile = join(c.QueueFile)
	c.IdentityFile = join(c.IdentityFile)
	c.StateFile = join(c.StateFile)
	c.EventLogFile = join(c.EventLogFile)
	return c
}

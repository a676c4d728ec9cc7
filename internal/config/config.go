// Package config provides YAML-based configuration loading for beadboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level beadboard configuration, loaded from beadboard.yaml.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Stream    StreamConfig    `yaml:"stream"`
	Staleness StalenessConfig `yaml:"staleness"`
	Notify    NotifyConfig    `yaml:"notify"`
	GitHub    GitHubConfig    `yaml:"github"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig points at the external beads store. The sqlite driver reads
// the database file the bd CLI maintains; the mysql driver targets a beads
// Dolt server, which speaks the MySQL protocol.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite database file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Actor    string `yaml:"actor"` // written into audit events for dashboard mutations
}

// DashboardConfig holds HTTP server settings.
type DashboardConfig struct {
	Port    int `yaml:"port"`
	RetryMS int `yaml:"retry_ms"` // SSE client reconnect advisory
}

// StreamConfig tunes the per-subscription polling and eviction machinery.
type StreamConfig struct {
	PollIntervalMS    int `yaml:"poll_interval_ms"`
	HeartbeatSeconds  int `yaml:"heartbeat_seconds"`
	SweepSeconds      int `yaml:"sweep_seconds"`
	StaleAfterSeconds int `yaml:"stale_after_seconds"`
	EventBatchLimit   int `yaml:"event_batch_limit"`
}

// StalenessConfig tunes the stuck-bead detector. Review thresholds are
// longer than in-progress thresholds on purpose; review latency is
// naturally higher.
type StalenessConfig struct {
	ScanCron               string `yaml:"scan_cron"`
	InProgressWarningHours int    `yaml:"in_progress_warning_hours"`
	InProgressCriticalHrs  int    `yaml:"in_progress_critical_hours"`
	InReviewWarningHours   int    `yaml:"in_review_warning_hours"`
	InReviewCriticalHours  int    `yaml:"in_review_critical_hours"`
}

// NotifyConfig holds outbound alert adapters. An adapter with an empty
// token is simply not started.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials for stale-bead alerts.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord credentials for stale-bead alerts.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// GitHubConfig enables PR state lookups for beads in review.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Host == "" {
		c.Store.Host = "127.0.0.1"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 3306
	}
	if c.Store.Actor == "" {
		c.Store.Actor = "beadboard"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Dashboard.RetryMS == 0 {
		c.Dashboard.RetryMS = 3000
	}
	if c.Stream.PollIntervalMS == 0 {
		c.Stream.PollIntervalMS = 1000
	}
	if c.Stream.HeartbeatSeconds == 0 {
		c.Stream.HeartbeatSeconds = 15
	}
	if c.Stream.SweepSeconds == 0 {
		c.Stream.SweepSeconds = 30
	}
	if c.Stream.StaleAfterSeconds == 0 {
		c.Stream.StaleAfterSeconds = 120
	}
	if c.Stream.EventBatchLimit == 0 {
		c.Stream.EventBatchLimit = 200
	}
	if c.Staleness.ScanCron == "" {
		c.Staleness.ScanCron = "*/5 * * * *"
	}
	if c.Staleness.InProgressWarningHours == 0 {
		c.Staleness.InProgressWarningHours = 2
	}
	if c.Staleness.InProgressCriticalHrs == 0 {
		c.Staleness.InProgressCriticalHrs = 8
	}
	if c.Staleness.InReviewWarningHours == 0 {
		c.Staleness.InReviewWarningHours = 24
	}
	if c.Staleness.InReviewCriticalHours == 0 {
		c.Staleness.InReviewCriticalHours = 72
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "mysql":
		if c.Store.Database == "" {
			errs = append(errs, "store.database is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, mysql", c.Store.Driver))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a bot token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PollInterval returns the stream poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Stream.PollIntervalMS) * time.Millisecond
}

// HeartbeatInterval returns the SSE heartbeat interval as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Stream.HeartbeatSeconds) * time.Second
}

// SweepInterval returns the stale-connection sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Stream.SweepSeconds) * time.Second
}

// StaleAfter returns the idle threshold for forced connection closure.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Stream.StaleAfterSeconds) * time.Second
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration for otdbot.
//
// Secrets (API keys, webhook URLs, bot tokens) are referenced by env var name
// rather than stored inline, so config files stay safe to commit.
type Config struct {
	// Timezone is the fixed zone used to compute "today". All runners must
	// agree on it regardless of host-local time. Default: America/Los_Angeles.
	Timezone string `json:"timezone,omitempty"`

	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Feed     FeedConfig     `json:"feed"`
	History  HistoryConfig  `json:"history"`

	// Tiers are tried strictly in listed order; the first valid pick wins.
	Tiers []TierConfig `json:"tiers"`

	Selection SelectionConfig `json:"selection"`
	LinkCheck LinkCheckConfig `json:"link_check"`
	Notify    NotifyConfig    `json:"notify"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`

	// RunBudget caps the wall-clock time of one pipeline run
	// (Go duration string, e.g. "3m"). Default: "3m".
	RunBudget string `json:"run_budget,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors warn/error log lines to a Discord webhook.
type LoggingDiscord struct {
	Enabled       bool   `json:"enabled"`
	WebhookURLEnv string `json:"webhook_url_env,omitempty"` // default: OTD_LOG_WEBHOOK_URL
	MinLevel      string `json:"min_level"`
	RatePerSec    int    `json:"rate_per_sec"`
}

// ScheduleConfig controls the daemon-mode trigger. Ignored in -once mode.
type ScheduleConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression (5-field, or 6-field with seconds).
	// Default: "0 9 * * *" (daily at 09:00 in Timezone).
	Spec string `json:"spec,omitempty"`
}

type FeedConfig struct {
	BaseURL   string `json:"base_url,omitempty"` // default: https://en.wikipedia.org
	UserAgent string `json:"user_agent,omitempty"`
	// Limit caps how many candidates are offered to a provider. Default: 30.
	Limit int `json:"limit,omitempty"`
	// Timeout is a Go duration string. Default: "15s".
	Timeout string `json:"timeout,omitempty"`
}

// HistoryConfig controls the persistence layer.
//
// Driver values:
//   - "file": dependency-free JSON file backend (default)
//   - "sqlite": SQLite database file (optional build tag)
type HistoryConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"` // default: ./history_log.json
	// CurrentPath is where the latest selection snapshot is written.
	// Default: ./current_otd.json.
	CurrentPath string `json:"current_path,omitempty"`
	// Retention bounds the history log. Default: 100.
	Retention   int    `json:"retention,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TierConfig describes one generation provider in fallback priority order.
type TierConfig struct {
	Name string `json:"name"`
	// Kind selects the provider implementation: "gemini", "openai", "emergency".
	Kind    string `json:"kind"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	// APIKeyEnv names the env var holding this tier's API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`
	// Attempts is the bounded per-tier retry budget. Default: 3.
	Attempts int `json:"attempts,omitempty"`
	// RetryDelay is the fixed inter-attempt delay. Default: "5s".
	RetryDelay string `json:"retry_delay,omitempty"`
	// Timeout bounds a single provider call. Default: "45s".
	Timeout string `json:"timeout,omitempty"`
}

type SelectionConfig struct {
	// ExcludeWindow is how many recent history entries feed the hard
	// novelty exclusion set. Default: 50.
	ExcludeWindow int `json:"exclude_window,omitempty"`
	// ContextWindow is how many recent summaries are quoted in the prompt.
	// Default: 5.
	ContextWindow int `json:"context_window,omitempty"`
	// MaxWords bounds the generated summary. Default: 40.
	MaxWords int `json:"max_words,omitempty"`
	// MaxEventChars is a hard structural cap on the event text. Default: 400.
	MaxEventChars int `json:"max_event_chars,omitempty"`
}

type LinkCheckConfig struct {
	Enabled bool   `json:"enabled"`
	Timeout string `json:"timeout,omitempty"` // default: "5s"
}

type NotifyConfig struct {
	Discord  DiscordSink  `json:"discord"`
	Telegram TelegramSink `json:"telegram"`
	// RatePerSec limits outbound deliveries across all sinks. Default: 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// RetryMax is extra delivery attempts per sink after the first. Default: 2.
	RetryMax int `json:"retry_max,omitempty"`
}

type DiscordSink struct {
	Enabled       bool   `json:"enabled"`
	WebhookURLEnv string `json:"webhook_url_env,omitempty"` // default: DISCORD_WEBHOOK_URL
	Username      string `json:"username,omitempty"`
	// Color is the embed accent color as an integer (e.g. 0xe67e22).
	Color int `json:"color,omitempty"`
}

type TelegramSink struct {
	Enabled  bool   `json:"enabled"`
	TokenEnv string `json:"token_env,omitempty"` // default: TELEGRAM_BOT_TOKEN
	ChatID   int64  `json:"chat_id,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9190"
}

// ApplyDefaults fills zero-valued fields in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "America/Los_Angeles"
	}
	if strings.TrimSpace(c.RunBudget) == "" {
		c.RunBudget = "3m"
	}
	if strings.TrimSpace(c.Schedule.Spec) == "" {
		c.Schedule.Spec = "0 9 * * *"
	}
	if strings.TrimSpace(c.Feed.BaseURL) == "" {
		c.Feed.BaseURL = "https://en.wikipedia.org"
	}
	if strings.TrimSpace(c.Feed.UserAgent) == "" {
		c.Feed.UserAgent = "otdbot/1.0"
	}
	if c.Feed.Limit <= 0 {
		c.Feed.Limit = 30
	}
	if strings.TrimSpace(c.Feed.Timeout) == "" {
		c.Feed.Timeout = "15s"
	}
	if strings.TrimSpace(c.History.Driver) == "" {
		c.History.Driver = "file"
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = "./history_log.json"
	}
	if strings.TrimSpace(c.History.CurrentPath) == "" {
		c.History.CurrentPath = "./current_otd.json"
	}
	if c.History.Retention <= 0 {
		c.History.Retention = 100
	}
	if c.Selection.ExcludeWindow <= 0 {
		c.Selection.ExcludeWindow = 50
	}
	if c.Selection.ContextWindow <= 0 {
		c.Selection.ContextWindow = 5
	}
	if c.Selection.MaxWords <= 0 {
		c.Selection.MaxWords = 40
	}
	if c.Selection.MaxEventChars <= 0 {
		c.Selection.MaxEventChars = 400
	}
	if strings.TrimSpace(c.LinkCheck.Timeout) == "" {
		c.LinkCheck.Timeout = "5s"
	}
	if c.Notify.RatePerSec <= 0 {
		c.Notify.RatePerSec = 1
	}
	if c.Notify.RetryMax < 0 {
		c.Notify.RetryMax = 0
	}
	if strings.TrimSpace(c.Notify.Discord.WebhookURLEnv) == "" {
		c.Notify.Discord.WebhookURLEnv = "DISCORD_WEBHOOK_URL"
	}
	if strings.TrimSpace(c.Notify.Discord.Username) == "" {
		c.Notify.Discord.Username = "History Bot"
	}
	if c.Notify.Discord.Color == 0 {
		c.Notify.Discord.Color = 0xe67e22
	}
	if strings.TrimSpace(c.Notify.Telegram.TokenEnv) == "" {
		c.Notify.Telegram.TokenEnv = "TELEGRAM_BOT_TOKEN"
	}
	if strings.TrimSpace(c.Logging.Discord.WebhookURLEnv) == "" {
		c.Logging.Discord.WebhookURLEnv = "OTD_LOG_WEBHOOK_URL"
	}
	if strings.TrimSpace(c.Metrics.Addr) == "" {
		c.Metrics.Addr = "127.0.0.1:9190"
	}
	for i := range c.Tiers {
		t := &c.Tiers[i]
		if t.Attempts <= 0 {
			t.Attempts = 3
		}
		if strings.TrimSpace(t.RetryDelay) == "" {
			t.RetryDelay = "5s"
		}
		if strings.TrimSpace(t.Timeout) == "" {
			t.Timeout = "45s"
		}
	}
}

// Validate checks cross-field consistency. Duration strings are validated
// here so a bad reload is rejected before it reaches any component.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(strings.TrimSpace(c.Timezone)); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := ParseDurationField("run_budget", c.RunBudget); err != nil {
		return err
	}
	if _, err := ParseDurationField("feed.timeout", c.Feed.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("link_check.timeout", c.LinkCheck.Timeout); err != nil {
		return err
	}
	if len(c.Tiers) == 0 {
		return errors.New("tiers: at least one tier is required")
	}
	for i, t := range c.Tiers {
		prefix := fmt.Sprintf("tiers[%d]", i)
		switch strings.ToLower(strings.TrimSpace(t.Kind)) {
		case "gemini", "openai":
			if strings.TrimSpace(t.Model) == "" {
				return fmt.Errorf("%s: model is required for kind %q", prefix, t.Kind)
			}
			if strings.TrimSpace(t.APIKeyEnv) == "" {
				return fmt.Errorf("%s: api_key_env is required for kind %q", prefix, t.Kind)
			}
		case "emergency":
			// no knobs
		default:
			return fmt.Errorf("%s: unknown tier kind %q", prefix, t.Kind)
		}
		if _, err := ParseDurationField(prefix+".retry_delay", t.RetryDelay); err != nil {
			return err
		}
		if _, err := ParseDurationField(prefix+".timeout", t.Timeout); err != nil {
			return err
		}
	}
	return nil
}

// Secret resolves a secret by its configured env var name.
// Missing env vars resolve to "" (callers decide whether that is fatal).
func Secret(envName string) string {
	return strings.TrimSpace(os.Getenv(strings.TrimSpace(envName)))
}

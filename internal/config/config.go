// Package config loads and validates the bot configuration from a YAML (or
// JSON) file, with strict decoding so typos are caught at startup rather
// than silently ignored.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	Token         string `json:"token"`
	DefaultChatID int64  `json:"default_chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SchedulerConfig controls firing and day-boundary behavior.
//
// UTCOffset is a fixed offset like "+09:00", not an IANA zone: the bot
// serves a single locale and all "today" math uses this one offset.
type SchedulerConfig struct {
	UTCOffset       string `json:"utc_offset"`
	SummaryAt       string `json:"summary_at,omitempty"` // local "HH:MM"
	SummaryEnabled  *bool  `json:"summary_enabled,omitempty"`
	DispatchTimeout string `json:"dispatch_timeout,omitempty"` // Go duration string
}

// Load reads, decodes and validates the config file, applying defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := decodeStrict(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeout == "" {
		c.Telegram.PollTimeout = "10s"
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 3
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/notibot.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Scheduler.UTCOffset == "" {
		c.Scheduler.UTCOffset = "+09:00"
	}
	if c.Scheduler.SummaryAt == "" {
		c.Scheduler.SummaryAt = "08:00"
	}
	if c.Scheduler.SummaryEnabled == nil {
		on := true
		c.Scheduler.SummaryEnabled = &on
	}
	if c.Scheduler.DispatchTimeout == "" {
		c.Scheduler.DispatchTimeout = "10s"
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.DefaultChatID == 0 {
		return fmt.Errorf("telegram.default_chat_id is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"telegram.poll_timeout":      c.Telegram.PollTimeout,
		"scheduler.dispatch_timeout": c.Scheduler.DispatchTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Storage.BusyTimeout != "" {
		if _, err := time.ParseDuration(c.Storage.BusyTimeout); err != nil {
			return fmt.Errorf("storage.busy_timeout: %w", err)
		}
	}
	if !strings.Contains(c.Scheduler.SummaryAt, ":") {
		return fmt.Errorf("scheduler.summary_at: expected HH:MM, got %q", c.Scheduler.SummaryAt)
	}
	return nil
}

// Location builds the fixed-offset location from scheduler.utc_offset.
func (c *Config) Location() (*time.Location, error) {
	return parseOffset(c.Scheduler.UTCOffset)
}

// parseOffset accepts "+09:00", "-05:30" or "+09".
func parseOffset(v string) (*time.Location, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil, fmt.Errorf("scheduler.utc_offset is required")
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return nil, fmt.Errorf("scheduler.utc_offset must start with + or -: %q", v)
	}
	hh, mm := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 14 || m < 0 || m > 59 {
		return nil, fmt.Errorf("invalid scheduler.utc_offset %q", v)
	}
	return time.FixedZone("UTC"+v, sign*(h*3600+m*60)), nil
}

// Duration helpers for validated duration-string fields.

func (t TelegramConfig) PollTimeoutDuration() time.Duration {
	return mustDuration(t.PollTimeout)
}

func (s StorageConfig) BusyTimeoutDuration() time.Duration {
	if s.BusyTimeout == "" {
		return 0
	}
	return mustDuration(s.BusyTimeout)
}

func (s SchedulerConfig) DispatchTimeoutDuration() time.Duration {
	return mustDuration(s.DispatchTimeout)
}

// mustDuration is only called on fields already checked by validate().
func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

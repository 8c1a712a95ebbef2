// Package config loads oscwatch configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (OSCWATCH_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .oscwatch.yaml in current directory
//  2. ~/.config/oscwatch/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/osc"
)

// Config holds all oscwatch configuration.
type Config struct {
	// Session
	Shell     string `yaml:"shell"`
	RecordDir string `yaml:"record_dir"` // record every run into this directory

	// Processor
	HomeDir      string `yaml:"home_dir"` // expands ~ in reported directories
	CarryPartial bool   `yaml:"carry_partial"`
	MaxCarry     int    `yaml:"max_carry"`

	// Title updates
	SetTitle    *bool  `yaml:"set_title"`
	TitlePrefix string `yaml:"title_prefix"`

	// Events and watch
	EventSocket string `yaml:"event_socket"`
	EventTTL    string `yaml:"event_ttl"` // Go duration string, e.g. "10m"
	Refresh     string `yaml:"refresh"`   // watch refresh interval
	Theme       string `yaml:"theme"`     // "dark" (default) or "light"

	LogLevel string `yaml:"log_level"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from YAML, set after loading)
	EventTTLDuration time.Duration `yaml:"-"`
	RefreshDuration  time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		MaxCarry: osc.DefaultMaxCarry,
		EventTTL: "10m",
		Refresh:  "1s",
		Theme:    "dark",
		LogLevel: logging.DefaultLevel,
	}
}

// TitleEnabled reports whether run should update the terminal title.
// It defaults to on.
func (c *Config) TitleEnabled() bool {
	return c.SetTitle == nil || *c.SetTitle
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HomeDir = home
		}
	}
	if cfg.EventSocket == "" {
		cfg.EventSocket = events.DefaultSocketPath()
	}

	// Parse durations
	var err error
	cfg.EventTTLDuration, err = parseDurationOrDisable(cfg.EventTTL, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid event TTL %q: %w", cfg.EventTTL, err)
	}
	cfg.RefreshDuration, err = parseDurationOrDisable(cfg.Refresh, time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh interval %q: %w", cfg.Refresh, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make components misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxCarry < 0 {
		errs = append(errs, fmt.Errorf("max_carry must not be negative, got %d", c.MaxCarry))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Theme {
	case "", "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("unknown theme %q (supported: dark, light)", c.Theme))
	}
	return errors.Join(errs...)
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".oscwatch.yaml"); err == nil {
		return ".oscwatch.yaml", data, nil
	}

	// 2. ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "oscwatch", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Shell != "" {
		cfg.Shell = file.Shell
	}
	if file.RecordDir != "" {
		cfg.RecordDir = file.RecordDir
	}
	if file.HomeDir != "" {
		cfg.HomeDir = file.HomeDir
	}
	if file.CarryPartial {
		cfg.CarryPartial = file.CarryPartial
	}
	if file.MaxCarry != 0 {
		cfg.MaxCarry = file.MaxCarry
	}
	if file.SetTitle != nil {
		cfg.SetTitle = file.SetTitle
	}
	if file.TitlePrefix != "" {
		cfg.TitlePrefix = file.TitlePrefix
	}
	if file.EventSocket != "" {
		cfg.EventSocket = file.EventSocket
	}
	if file.EventTTL != "" {
		cfg.EventTTL = file.EventTTL
	}
	if file.Refresh != "" {
		cfg.Refresh = file.Refresh
	}
	if file.Theme != "" {
		cfg.Theme = file.Theme
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("OSCWATCH_SHELL"); v != "" {
		cfg.Shell = v
	}
	if v := os.Getenv("OSCWATCH_RECORD_DIR"); v != "" {
		cfg.RecordDir = v
	}
	if v := os.Getenv("OSCWATCH_HOME"); v != "" {
		cfg.HomeDir = v
	}
	if v := os.Getenv("OSCWATCH_CARRY_PARTIAL"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OSCWATCH_CARRY_PARTIAL %q: %w", v, err)
		}
		cfg.CarryPartial = on
	}
	if v := os.Getenv("OSCWATCH_MAX_CARRY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OSCWATCH_MAX_CARRY %q: %w", v, err)
		}
		cfg.MaxCarry = n
	}
	if v := os.Getenv("OSCWATCH_SET_TITLE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OSCWATCH_SET_TITLE %q: %w", v, err)
		}
		cfg.SetTitle = &on
	}
	if v := os.Getenv("OSCWATCH_TITLE_PREFIX"); v != "" {
		cfg.TitlePrefix = v
	}
	if v := os.Getenv("OSCWATCH_EVENT_SOCKET"); v != "" {
		cfg.EventSocket = v
	}
	if v := os.Getenv("OSCWATCH_EVENT_TTL"); v != "" {
		cfg.EventTTL = v
	}
	if v := os.Getenv("OSCWATCH_REFRESH"); v != "" {
		cfg.Refresh = v
	}
	if v := os.Getenv("OSCWATCH_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("OSCWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

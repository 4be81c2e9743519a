// Package models defines data structures for configuration, page metadata and scan results.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidDefaultDays = errors.New("badges.defaultExpireDays must be at least 1")
	ErrInvalidBadgeDays   = errors.New("badges.badgeTypes days must be non-negative")
	ErrInvalidWorkers     = errors.New("site.workers must be non-negative")
	ErrInvalidSettleDelay = errors.New("watch.settleDelay must be a non-negative duration")
	ErrInvalidLogLevel    = errors.New("logging.level must be one of: debug, info, warn, error")
)

const (
	DefaultConfigFile  = "vpbadge.yaml"
	DefaultDist        = "docs/.vitepress/dist"
	DefaultHistoryPath = ".vpbadge/history.db"
	DefaultWorkers     = 4
	DefaultSettleDelay = 500 * time.Millisecond
)

// PolicyOverrides is the caller-supplied badge configuration.
// Nil fields fall back to built-in defaults.
type PolicyOverrides struct {
	DefaultExpireDays *int           `yaml:"defaultExpireDays,omitempty" json:"defaultExpireDays,omitempty"`
	BadgeTypes        map[string]int `yaml:"badgeTypes,omitempty" json:"badgeTypes,omitempty"`
	EnableLogs        *bool          `yaml:"enableLogs,omitempty" json:"enableLogs,omitempty"`
}

// Config is the complete vpbadge configuration file.
type Config struct {
	Badges  PolicyOverrides `yaml:"badges"`
	Site    SiteConfig      `yaml:"site"`
	Watch   WatchConfig     `yaml:"watch"`
	History HistoryConfig   `yaml:"history"`
	Logging LoggingConfig   `yaml:"logging"`
}

// SiteConfig locates the rendered site and, optionally, its markdown sources.
type SiteConfig struct {
	Dist    string `yaml:"dist"`
	Src     string `yaml:"src,omitempty"`
	Workers int    `yaml:"workers"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	SettleDelay string `yaml:"settleDelay"`
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Dist:    DefaultDist,
			Workers: DefaultWorkers,
		},
		Watch: WatchConfig{
			SettleDelay: DefaultSettleDelay.String(),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Badges.DefaultExpireDays != nil && *c.Badges.DefaultExpireDays < 1 {
		return ErrInvalidDefaultDays
	}

	for name, days := range c.Badges.BadgeTypes {
		if days < 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidBadgeDays, name, days)
		}
	}

	if c.Site.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Watch.SettleDelay != "" {
		d, err := time.ParseDuration(c.Watch.SettleDelay)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidSettleDelay, c.Watch.SettleDelay)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return ErrInvalidLogLevel
	}

	return nil
}

// GetSettleDelay returns the settle delay, falling back to the default.
func (w *WatchConfig) GetSettleDelay() time.Duration {
	if w.SettleDelay == "" {
		return DefaultSettleDelay
	}
	d, err := time.ParseDuration(w.SettleDelay)
	if err != nil || d < 0 {
		return DefaultSettleDelay
	}
	return d
}

// GetWorkers returns the worker count, falling back to the default.
func (s *SiteConfig) GetWorkers() int {
	if s.Workers <= 0 {
		return DefaultWorkers
	}
	return s.Workers
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Dist: %s, Src: %s, Workers: %d, History: %t}",
		c.Site.Dist,
		c.Site.Src,
		c.Site.GetWorkers(),
		c.History.Enabled,
	)
}

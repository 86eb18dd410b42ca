// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the console configuration.
type Config struct {
	// Endpoint configures the BICP connection.
	Endpoint EndpointConfig `yaml:"endpoint"`

	// Cache configures the on-disk day cache.
	Cache CacheConfig `yaml:"cache"`

	// Log configures background logging.
	Log LogConfig `yaml:"log"`
}

// EndpointConfig configures the BICP connection.
type EndpointConfig struct {
	// URL is the single BICP POST endpoint.
	// Default: http://127.0.0.1:8632/bicp
	URL string `yaml:"url"`

	// RequestTimeout bounds each RPC, as a Go duration string.
	// Default: 30s
	RequestTimeout string `yaml:"request_timeout"`
}

// CacheConfig configures the on-disk day cache.
type CacheConfig struct {
	// Dir is the cache directory.
	// Default: <user cache dir>/tracedeck/days
	Dir string `yaml:"dir"`

	// Disabled turns the day cache off entirely; every expansion then
	// goes to the backend.
	Disabled bool `yaml:"disabled"`
}

// LogConfig configures background logging. The TUI owns the terminal,
// so log records go to a file, never to stderr.
type LogConfig struct {
	// Output is the log file path. Empty disables logging.
	Output string `yaml:"output"`

	// Level is the minimum record level: debug, info, warn, or error.
	// Default: warn
	Level string `yaml:"level"`
}

// Default returns the default configuration. The console is expected
// to run with exactly this when the operator has no config file.
func Default() *Config {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "tracedeck", "days")
	}

	return &Config{
		Endpoint: EndpointConfig{
			URL:            "http://127.0.0.1:8632/bicp",
			RequestTimeout: "30s",
		},
		Cache: CacheConfig{
			Dir: cacheDir,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from the TRACEDECK_CONFIG environment
// variable. When the variable is unset the defaults are returned
// unchanged.
func Load() (*Config, error) {
	path := os.Getenv("TRACEDECK_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file's values over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint.URL == "" {
		errs = append(errs, fmt.Errorf("endpoint.url is required"))
	} else if parsed, err := url.Parse(c.Endpoint.URL); err != nil {
		errs = append(errs, fmt.Errorf("endpoint.url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("endpoint.url must be http or https, got %q", parsed.Scheme))
	}

	if _, err := time.ParseDuration(c.Endpoint.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("endpoint.request_timeout: %w", err))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestTimeout returns the parsed per-request timeout. Call Validate
// first; an unparseable value falls back to 30 seconds here.
func (c *Config) RequestTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.Endpoint.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return timeout
}

// LogLevel returns the parsed minimum log level, defaulting to warn.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", name)
	}
}

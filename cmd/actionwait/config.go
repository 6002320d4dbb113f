package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/wait"
)

// Config holds all actionwait server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	BaseURL        string `json:"base_url"`
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	SweepSchedule  string `json:"sweep_schedule"`
	DefaultTimeout string `json:"default_timeout"`
	Events         bool   `json:"events"`
	MCP            bool   `json:"mcp"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:     ":4200",
		DBPath:         filepath.Join(actionwaitDir(), "actionwait.db"),
		LogLevel:       "info",
		SweepSchedule:  host.DefaultSweepSchedule,
		DefaultTimeout: wait.DefaultTimeout.String(),
		Events:         true,
	}
}

func actionwaitDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".actionwait"
	}
	return filepath.Join(home, ".actionwait")
}

func settingsPath() string {
	return filepath.Join(actionwaitDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("ACTIONWAIT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("ACTIONWAIT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("ACTIONWAIT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("ACTIONWAIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("ACTIONWAIT_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}
	if v := getenv("ACTIONWAIT_DEFAULT_TIMEOUT"); v != "" {
		cfg.DefaultTimeout = v
	}
	if v := getenv("ACTIONWAIT_EVENTS"); v != "" {
		cfg.Events = v == "true" || v == "1"
	}
	if v := getenv("ACTIONWAIT_MCP"); v != "" {
		cfg.MCP = v == "true" || v == "1"
	}

	// Derive base_url from listen_addr if empty.
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	return cfg
}

// validate checks the fields that are parsed later.
func (c Config) validate() error {
	if _, err := c.timeout(); err != nil {
		return err
	}
	if _, err := host.ParseSchedule(c.SweepSchedule); err != nil {
		return err
	}
	return nil
}

func (c Config) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse default_timeout %q: %w", c.DefaultTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("default_timeout must be positive, got %s", d)
	}
	return d, nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	EventsChanged   bool
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.Events != new.Events {
		d.EventsChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.BaseURL != new.BaseURL {
		d.RestartNeeded = append(d.RestartNeeded, "base_url")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.SweepSchedule != new.SweepSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "sweep_schedule")
	}
	if old.DefaultTimeout != new.DefaultTimeout {
		d.RestartNeeded = append(d.RestartNeeded, "default_timeout")
	}
	if old.MCP != new.MCP {
		d.RestartNeeded = append(d.RestartNeeded, "mcp")
	}
	return d
}

func pidPath() string {
	return filepath.Join(actionwaitDir(), "actionwait.pid")
}

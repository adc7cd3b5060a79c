package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kilianp07/obsched/core/factory"
)

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Address string `json:"address"`
	// Token, when set, must be sent as a Bearer token on /api routes.
	Token string `json:"token"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8000"
	}
}

func (c ServerConfig) Validate() error { return nil }

// StoreConfig selects the persistence backend. Path is a directory for the
// file backend and a database file for sqlite.
type StoreConfig struct {
	Backend     string        `json:"backend"`
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "file"
	}
	if c.Path == "" {
		c.Path = "data"
		if c.Backend == "sqlite" {
			c.Path = filepath.Join("data", "obsched.db")
		}
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "file", "sqlite", "memory":
		return nil
	}
	return fmt.Errorf("store: unknown backend %q", c.Backend)
}

// Module converts the section into a factory configuration for store.Open.
func (c StoreConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"path":         c.Path,
		"busy_timeout": c.BusyTimeout.String(),
	}}
}

// PlaybackConfig configures the coordinator.
type PlaybackConfig struct {
	TickIntervalMS int  `json:"tick_interval_ms"`
	Layer          *int `json:"layer"`
}

func (c *PlaybackConfig) SetDefaults() {
	if c.TickIntervalMS <= 0 {
		c.TickIntervalMS = 1000
	}
}

func (c PlaybackConfig) Validate() error {
	if c.Layer != nil && *c.Layer < 0 {
		return fmt.Errorf("playback: layer must be >= 0")
	}
	return nil
}

func (c PlaybackConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// ContestConfig sets the zone used for "today" in contest start and
// template loads.
type ContestConfig struct {
	Timezone string `json:"timezone"`
}

func (c *ContestConfig) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

func (c ContestConfig) Validate() error {
	_, err := c.Location()
	return err
}

func (c ContestConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("contest: timezone: %w", err)
	}
	return loc, nil
}

// CatalogConfig configures the media scanner.
type CatalogConfig struct {
	FFProbePath         string `json:"ffprobe_path"`
	ScanIntervalSeconds int    `json:"scan_interval_seconds"`
	ProbeTimeoutSeconds int    `json:"probe_timeout_seconds"`
	Watch               *bool  `json:"watch"`
}

func (c *CatalogConfig) SetDefaults() {
	if c.ScanIntervalSeconds <= 0 {
		c.ScanIntervalSeconds = 5
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = 5
	}
	if c.Watch == nil {
		w := true
		c.Watch = &w
	}
}

func (c CatalogConfig) Validate() error { return nil }

func (c CatalogConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

func (c CatalogConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func (c CatalogConfig) WatchEnabled() bool { return c.Watch == nil || *c.Watch }

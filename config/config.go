// Package config loads the service configuration from a YAML or JSON file
// with OBSCHED_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/obsched/core/metrics"
	"github.com/kilianp07/obsched/infra/monitoring"
	"github.com/kilianp07/obsched/infra/mqtt"
	"github.com/kilianp07/obsched/infra/obs"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: OBSCHED_OBS__HOST sets obs.host.
const EnvPrefix = "OBSCHED_"

type Config struct {
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
	Playback PlaybackConfig `json:"playback"`
	Contest  ContestConfig  `json:"contest"`
	Catalog  CatalogConfig  `json:"catalog"`
	OBS      obs.Config     `json:"obs"`
	Metrics  metrics.Config `json:"metrics"`
	MQTT     mqtt.Config    `json:"mqtt"`
	Logging  LoggingConfig  `json:"logging"`

	Monitoring monitoring.Config `json:"monitoring"`
}

// Load reads path, applies environment overrides, fills defaults and
// validates. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Store.SetDefaults()
	c.Playback.SetDefaults()
	c.Contest.SetDefaults()
	c.Catalog.SetDefaults()
	c.OBS.SetDefaults()
	c.MQTT.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Store.Validate(),
		c.Playback.Validate(),
		c.Contest.Validate(),
		c.Catalog.Validate(),
		c.OBS.Validate(),
		c.MQTT.Validate(),
		c.Logging.Validate(),
	)
}

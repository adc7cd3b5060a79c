package obs

import (
	"fmt"
	"time"
)

// Audio monitor modes accepted in Config.AudioMonitorMode.
const (
	MonitorAndOutput = "monitor_and_output"
	MonitorOnly      = "monitor_only"
	MonitorOff       = "monitor_off"
)

var monitorTypes = map[string]string{
	MonitorAndOutput: "OBS_MONITORING_TYPE_MONITOR_AND_OUTPUT",
	MonitorOnly:      "OBS_MONITORING_TYPE_MONITOR_ONLY",
	MonitorOff:       "OBS_MONITORING_TYPE_MONITOR_OFF",
}

// Config holds the OBS connection and placement settings.
type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Scene    string `json:"scene"`
	Layer    *int   `json:"layer"`

	SourcesToMute []string `json:"sources_to_mute"`

	// Margins are in canvas pixels; relative sizes are fractions of the
	// base canvas and default to 1.
	LeftMargin     float64 `json:"left_margin"`
	TopMargin      float64 `json:"top_margin"`
	RelativeWidth  float64 `json:"relative_width"`
	RelativeHeight float64 `json:"relative_height"`

	AudioMonitorSources []string `json:"audio_monitor_sources"`
	AudioMonitorPrefix  string   `json:"audio_monitor_prefix"`
	AudioMonitorMode    string   `json:"audio_monitor_mode"`

	TimeoutSeconds int `json:"timeout_seconds"`
}

func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "4455"
	}
	if c.Scene == "" {
		c.Scene = "Scene 1"
	}
	if c.AudioMonitorPrefix == "" {
		c.AudioMonitorPrefix = "Scheduler:"
	}
	if c.AudioMonitorMode == "" {
		c.AudioMonitorMode = MonitorAndOutput
	}
	if c.RelativeWidth <= 0 {
		c.RelativeWidth = 1
	}
	if c.RelativeHeight <= 0 {
		c.RelativeHeight = 1
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 3
	}
}

func (c Config) Validate() error {
	if _, ok := monitorTypes[c.AudioMonitorMode]; !ok {
		return fmt.Errorf("obs: unknown audio_monitor_mode %q", c.AudioMonitorMode)
	}
	if c.Layer != nil && *c.Layer < 0 {
		return fmt.Errorf("obs: layer must be >= 0")
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

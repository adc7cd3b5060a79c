package model

import (
	"fmt"
	"strings"
)

// Runtime setting keys read by the coordinator and catalog on every pass.
const (
	SettingIdleSceneEnabled = "idle-scene-enabled"
	SettingIdleSceneName    = "idle-scene-name"
	SettingVideoSceneName   = "scene-name"
	SettingOBSVideoDir      = "obs-video-dir"
	SettingServerVideoDir   = "server-video-dir"
	SettingArchiveDir       = "archive-dir"
)

// Defaults applied when a setting is absent.
const (
	DefaultIdleScene  = "Slides"
	DefaultVideoScene = "Scene 1"
)

// Settings is the operator-editable runtime configuration.
type Settings map[string]any

// String returns the setting as a trimmed string, or def when empty.
func (s Settings) String(key, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	str := strings.TrimSpace(fmt.Sprint(v))
	if str == "" {
		return def
	}
	return str
}

// Bool interprets the setting loosely: true, 1, yes and on are truthy.
func (s Settings) Bool(key string) bool {
	v, ok := s[key]
	if !ok || v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// PlaybackSettings is the subset of Settings consumed by a playback tick.
type PlaybackSettings struct {
	IdleSceneEnabled bool
	IdleScene        string
	VideoScene       string
	MediaRoot        string
}

// Playback extracts the playback view of the settings with defaults applied.
func (s Settings) Playback() PlaybackSettings {
	return PlaybackSettings{
		IdleSceneEnabled: s.Bool(SettingIdleSceneEnabled),
		IdleScene:        s.String(SettingIdleSceneName, DefaultIdleScene),
		VideoScene:       s.String(SettingVideoSceneName, DefaultVideoScene),
		MediaRoot:        s.String(SettingOBSVideoDir, s.String(SettingServerVideoDir, ".")),
	}
}

// VideoDir is the directory scanned for video files on the server side.
func (s Settings) VideoDir() string {
	return s.String(SettingServerVideoDir, s.String(SettingOBSVideoDir, ""))
}

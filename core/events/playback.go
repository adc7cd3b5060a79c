package events

import "time"

// Playback actions.
const (
	ActionPlay  = "play"
	ActionStop  = "stop"
	ActionScene = "scene"
)

// PlaybackEvent is published for every renderer command the coordinator
// issues, successful or not.
type PlaybackEvent struct {
	Action   string    `json:"action"`
	EntryID  string    `json:"entry_id,omitempty"`
	Name     string    `json:"name,omitempty"`
	SourceID string    `json:"source_id,omitempty"`
	Scene    string    `json:"scene,omitempty"`
	StartMs  int64     `json:"start_ts,omitempty"`
	StopMs   int64     `json:"stop_ts,omitempty"`
	Clear    bool      `json:"clear,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Failed reports whether the renderer rejected the command.
func (e PlaybackEvent) Failed() bool { return e.Error != "" }

package metrics

import "time"

// Tick outcomes.
const (
	TickOK    = "ok"
	TickError = "error"
	TickPanic = "panic"
)

// CommandEvent describes a single renderer command.
type CommandEvent struct {
	Action   string
	EntryID  string
	Name     string
	SourceID string
	Scene    string
	Success  bool
	Latency  time.Duration
	Time     time.Time
}

// TickEvent describes one coordinator tick.
type TickEvent struct {
	Result   string
	Duration time.Duration
	Active   bool
	Time     time.Time
}

// Sink records playback activity for observability purposes.
type Sink interface {
	RecordCommand(ev CommandEvent) error
	RecordTick(ev TickEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommand(CommandEvent) error { return nil }
func (NopSink) RecordTick(TickEvent) error       { return nil }

// MultiSink forwards every record to each wrapped sink.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommand forwards to every sink and returns the first error.
func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordCommand(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordTick forwards to every sink and returns the first error.
func (m *MultiSink) RecordTick(ev TickEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordTick(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

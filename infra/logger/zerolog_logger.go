package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the output produced by loggers created with New.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// Format is "console" or "json". Empty selects console when APP_ENV=dev.
	Format string
	// Out defaults to os.Stdout.
	Out io.Writer
}

var (
	optsMu  sync.RWMutex
	current Options
)

// Configure installs the options used by subsequently created loggers.
func Configure(o Options) {
	optsMu.Lock()
	current = o
	optsMu.Unlock()
}

func options() Options {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return current
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger tagged with the component field.
// The output format follows Configure, falling back to the APP_ENV variable.
func NewZerologLogger(component string) Logger {
	o := options()
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(o.Format)
	if format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		format = "console"
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(out).Level(ParseLevel(o.Level)).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// ParseLevel converts a textual level into a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

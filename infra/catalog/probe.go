package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober reports the duration of a media file in milliseconds.
type Prober interface {
	Probe(ctx context.Context, path string) (int64, error)
}

// FFProbe runs ffprobe to read the container duration.
type FFProbe struct {
	Path    string
	Timeout time.Duration
}

// ResolveFFProbe picks the ffprobe binary: the configured path, then the
// FFPROBE_PATH environment variable, then the first ffprobe on PATH. It
// returns an empty string when none is available.
func ResolveFFProbe(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("FFPROBE_PATH"); env != "" {
		return env
	}
	if p, err := exec.LookPath("ffprobe"); err == nil {
		return p
	}
	return ""
}

// Probe returns the duration of path. Without a binary it returns 0.
func (f FFProbe) Probe(ctx context.Context, path string) (int64, error) {
	if f.Path == "" {
		return 0, nil
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseSeconds(stdout.String())
}

// parseSeconds converts ffprobe's fractional seconds output to milliseconds.
func parseSeconds(out string) (int64, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "N/A" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	if secs < 0 {
		return 0, nil
	}
	return int64(secs * 1000), nil
}

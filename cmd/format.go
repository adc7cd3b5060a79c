package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/kilianp07/obsched/core/contest"
	"github.com/kilianp07/obsched/core/schedule"
)

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow, color.Bold)
	headerColor = color.New(color.FgBlue, color.Bold)
	labelColor  = color.New(color.Bold)
	onAirColor  = color.New(color.FgHiGreen)
	soonColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.FgHiBlack)
)

func printOK(w io.Writer, format string, args ...any) {
	_, _ = okColor.Fprint(w, "✓ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printWarn(w io.Writer, format string, args ...any) {
	_, _ = warnColor.Fprint(w, "! ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printHeader(w io.Writer, title string) { _, _ = headerColor.Fprintf(w, "▸ %s\n", title) }

func printDim(w io.Writer, msg string) { _, _ = dimColor.Fprintln(w, msg) }

func printLine(w io.Writer, msg string) { _, _ = fmt.Fprintln(w, msg) }

func printField(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "%-8s ", label+":")
	_, _ = fmt.Fprintln(w, value)
}

func printStats(w io.Writer, st schedule.Stats, loc *time.Location) {
	printField(w, "entries", fmt.Sprintf("%d (%d dangling, %d overlapping)", st.Entries, st.Dangling, st.Overlaps))
	if st.Entries == 0 {
		return
	}
	printField(w, "from", formatTime(st.FirstStartMs, loc))
	printField(w, "until", formatTime(st.LastStopMs, loc))
	printField(w, "total", formatLength(st.TotalMs))
	printField(w, "mean", fmt.Sprintf("%s ± %s", formatLength(int64(st.MeanDurationMs)), formatLength(int64(st.StdDevDurationMs))))
	printField(w, "gap", formatLength(int64(st.MeanGapMs)))
	printField(w, "usage", humanize.FtoaWithDigits(st.Utilization*100, 1)+"%")
}

func modeLabel(mode string) string {
	if mode == contest.ModeRunning {
		return onAirColor.Sprint(mode)
	}
	return soonColor.Sprint(mode)
}

func airLabel(st schedule.Status) string {
	switch {
	case st.Status == schedule.StatusPlaying && st.Name != nil && st.SecondsLeft != nil:
		return onAirColor.Sprint(*st.Name) + fmt.Sprintf(", %s left", formatLength(*st.SecondsLeft*1000))
	case st.Status == schedule.StatusSoon && st.Name != nil && st.SecondsUntil != nil:
		return soonColor.Sprint(*st.Name) + fmt.Sprintf(" in %s", formatLength(*st.SecondsUntil*1000))
	}
	return dimColor.Sprint(st.Status)
}

func formatTime(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format("2006-01-02 15:04:05")
}

// relative renders ms against now as "3 minutes ago" or "2 hours from now".
func relative(ms, now int64) string {
	return humanize.RelTime(time.UnixMilli(ms), time.UnixMilli(now), "ago", "from now")
}

// formatLength renders a duration as [h:]mm:ss.
func formatLength(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// formatOffset renders a signed distance from the contest start.
func formatOffset(ms int64) string {
	sign := "+"
	if ms < 0 {
		sign, ms = "-", -ms
	}
	s := ms / 1000
	return fmt.Sprintf("%s%d:%02d:%02d", sign, s/3600, s/60%60, s%60)
}

// parseClock reads HH:MM.
func parseClock(s string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(s, ":")
	if !found || len(m) != 2 {
		return 0, 0, false
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return hour, minute, true
}

// parseWhen resolves a user supplied instant to epoch milliseconds. It
// accepts HH:MM on the day of now, a signed Go duration relative to anchor,
// an RFC 3339 timestamp or raw epoch milliseconds.
func parseWhen(s string, anchor int64, loc *time.Location, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := parseClock(s); ok {
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return 0, fmt.Errorf("%w: %s", contest.ErrInvalidTime, s)
		}
		y, mo, d := now.In(loc).Date()
		return time.Date(y, mo, d, h, m, 0, 0, loc).UnixMilli(), nil
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		if d, err := time.ParseDuration(s); err == nil {
			return anchor + d.Milliseconds(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	return 0, fmt.Errorf("cannot parse time %q", s)
}

// Package contest owns the contest anchor: the single timestamp every
// schedule entry is conceptually offset from. Shifting the anchor shifts the
// whole schedule with it, and saved templates replay a schedule on another
// calendar day.
package contest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

// ErrTemplateNotFound is returned when loading a template that was never saved.
var ErrTemplateNotFound = errors.New("template not found")

// ErrInvalidName is returned for template names that cannot be stored.
var ErrInvalidName = errors.New("invalid template name")

// ErrInvalidTime is returned by StartAt for an out of range hour or minute.
var ErrInvalidTime = errors.New("invalid time of day")

// Store is the persistence needed by the contest clock.
type Store interface {
	store.ScheduleStore
	store.ContestStore
	store.TemplateStore
}

// Clock manages the contest anchor and schedule templates.
type Clock struct {
	store Store
	clock clock.Clock
	loc   *time.Location
	log   logger.Logger
}

// Option configures a Clock.
type Option func(*Clock)

// WithLocation sets the location used for calendar-day arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(c *Clock) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithTimeSource replaces the wall clock.
func WithTimeSource(t clock.Clock) Option {
	return func(c *Clock) {
		if t != nil {
			c.clock = t
		}
	}
}

// New creates a contest Clock backed by st.
func New(st Store, log logger.Logger, opts ...Option) *Clock {
	c := &Clock{store: st, clock: clock.RealClock{}, loc: time.UTC, log: logger.Nop(log)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Location returns the location used for day arithmetic.
func (c *Clock) Location() *time.Location { return c.loc }

// Anchor returns the contest anchor, initialising it to now when unset.
func (c *Clock) Anchor(ctx context.Context) (int64, error) {
	anchor, ok, err := c.store.ContestAnchor(ctx)
	if err != nil {
		return 0, fmt.Errorf("read anchor: %w", err)
	}
	if ok {
		return anchor, nil
	}
	anchor = clock.NowMs(c.clock)
	if err := c.store.SetContestAnchor(ctx, anchor); err != nil {
		return 0, fmt.Errorf("init anchor: %w", err)
	}
	c.log.Infof("contest anchor initialised to %d", anchor)
	return anchor, nil
}

// Start moves the anchor to newAnchor (now when nil) and shifts every entry
// by the same delta. Anchor and schedule are read and persisted together.
func (c *Clock) Start(ctx context.Context, newAnchor *int64) (int64, error) {
	now := clock.NowMs(c.clock)
	target := now
	if newAnchor != nil {
		target = *newAnchor
	}
	var delta int64
	var shifted int
	err := c.store.UpdateContest(ctx, func(current int64, ok bool, entries []model.ScheduleEntry) (int64, []model.ScheduleEntry, error) {
		if !ok {
			current = now
		}
		delta = target - current
		for i := range entries {
			entries[i].StartMs += delta
		}
		shifted = len(entries)
		return target, entries, nil
	})
	if err != nil {
		return 0, fmt.Errorf("rebase: %w", err)
	}
	c.log.Infof("contest started at %d (shift %dms, %d entries)", target, delta, shifted)
	return target, nil
}

// StartAt starts the contest today at hour:minute in the clock's location.
func (c *Clock) StartAt(ctx context.Context, hour, minute int) (int64, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	y, m, d := c.clock.Now().In(c.loc).Date()
	at := time.Date(y, m, d, hour, minute, 0, 0, c.loc).UnixMilli()
	return c.Start(ctx, &at)
}

// SaveTemplate stores the current anchor and schedule as a new version of
// name and returns that version. Existing versions are never overwritten.
func (c *Clock) SaveTemplate(ctx context.Context, name string) (int, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	anchor, err := c.Anchor(ctx)
	if err != nil {
		return 0, err
	}
	entries, err := c.store.Schedule(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schedule: %w", err)
	}
	versions, err := c.store.TemplateVersions(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}
	version := len(versions)
	if err := c.store.SaveTemplate(ctx, name, version, model.Template{AnchorMs: anchor, Schedule: entries}); err != nil {
		return 0, fmt.Errorf("save template: %w", err)
	}
	c.log.Infof("saved template %s version %d", name, version)
	return version, nil
}

// LoadTemplate replays the latest version of name on today's date: the
// anchor and every entry keep their saved time of day. Entries are not
// rolled over midnight, so one saved earlier in the day than the anchor
// lands before it.
func (c *Clock) LoadTemplate(ctx context.Context, name string) (int64, error) {
	versions, err := c.store.TemplateVersions(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		latest = max(latest, v)
	}
	tpl, err := c.store.LoadTemplate(ctx, name, latest)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s.%d", ErrTemplateNotFound, name, latest)
	}
	if err != nil {
		return 0, fmt.Errorf("load template: %w", err)
	}

	today := c.clock.Now().In(c.loc)
	anchor := c.onDay(today, tpl.AnchorMs)
	entries := make([]model.ScheduleEntry, len(tpl.Schedule))
	for i, e := range tpl.Schedule {
		e.StartMs = c.onDay(today, e.StartMs)
		entries[i] = e
	}
	if err := c.store.Rebase(ctx, anchor, entries); err != nil {
		return 0, fmt.Errorf("rebase: %w", err)
	}
	c.log.Infof("loaded template %s version %d: anchor %d, %d entries", name, latest, anchor, len(entries))
	return anchor, nil
}

// onDay combines day's date with the time of day of ms.
func (c *Clock) onDay(day time.Time, ms int64) int64 {
	t := time.UnixMilli(ms).In(c.loc)
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc).UnixMilli()
}

// Templates lists the distinct saved template names.
func (c *Clock) Templates(ctx context.Context) ([]string, error) {
	names, err := c.store.TemplateNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return names, nil
}

// Mode values reported by State.
const (
	ModeRunning = "running"
	ModeBefore  = "before"
)

// State is the contest progress relative to the anchor.
type State struct {
	StartMs   int64  `json:"contest_start_ts"`
	CurrentMs int64  `json:"current_ts"`
	Mode      string `json:"mode"`
	DeltaMs   int64  `json:"delta_ms"`
}

// State reports whether the contest is running and the absolute distance
// from the anchor.
func (c *Clock) State(ctx context.Context) (State, error) {
	anchor, err := c.Anchor(ctx)
	if err != nil {
		return State{}, err
	}
	now := clock.NowMs(c.clock)
	st := State{StartMs: anchor, CurrentMs: now, Mode: ModeBefore, DeltaMs: now - anchor}
	if anchor < now {
		st.Mode = ModeRunning
	}
	if st.DeltaMs < 0 {
		st.DeltaMs = -st.DeltaMs
	}
	return st, nil
}

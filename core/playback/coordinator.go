package playback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kilianp07/obsched/core/events"
	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/metrics"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/monitoring"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

// DefaultInterval is the pause between the end of one tick and the start of
// the next.
const DefaultInterval = time.Second

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("coordinator already running")

// Store is the persistence read by every tick.
type Store interface {
	store.ScheduleStore
	store.CatalogStore
	store.SettingsStore
}

// Publisher receives playback events.
type Publisher interface {
	Publish(events.PlaybackEvent)
}

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Layer    *int
	Clock    clock.Clock
	Logger   logger.Logger
	Sink     metrics.Sink
	Events   Publisher
}

// State is the in-memory playback state. It is never persisted and starts
// empty on every restart.
type State struct {
	ActiveEntryID string    `json:"active_entry_id,omitempty"`
	ActiveName    string    `json:"active_name,omitempty"`
	ActiveSource  string    `json:"active_source,omitempty"`
	ActiveScene   string    `json:"active_scene,omitempty"`
	Handle        string    `json:"handle,omitempty"`
	Running       bool      `json:"running"`
	LastTick      time.Time `json:"last_tick,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Coordinator reconciles wall-clock time against the schedule.
type Coordinator struct {
	store    Store
	renderer Renderer
	opts     Options

	tickMu sync.Mutex

	mu     sync.Mutex
	state  State
	scene  string // scene the active source was placed in
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a Coordinator in the idle state.
func NewCoordinator(st Store, r Renderer, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	opts.Logger = logger.Nop(opts.Logger)
	if opts.Sink == nil {
		opts.Sink = metrics.NopSink{}
	}
	return &Coordinator{store: st, renderer: r, opts: opts}
}

// Start launches the tick loop in its own goroutine.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state.Running = true
	go func(done chan struct{}) {
		defer close(done)
		c.Run(ctx)
	}(c.done)
	return nil
}

// Stop prevents further ticks and waits for an in-flight tick to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.state.Running = false
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run ticks until ctx is cancelled. The next tick is scheduled only after
// the previous one returned, so ticks never overlap. A tick already under
// way when ctx is cancelled runs to completion.
func (c *Coordinator) Run(ctx context.Context) {
	c.opts.Logger.Infof("playback loop started (interval %s)", c.opts.Interval)
	defer c.opts.Logger.Infof("playback loop stopped")
	for {
		if err := c.Tick(context.WithoutCancel(ctx)); err != nil {
			c.opts.Logger.Errorf("tick: %v", err)
		}
		timer := time.NewTimer(c.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Snapshot returns a copy of the runtime state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tick evaluates the schedule once. Errors and panics are recovered and
// reported; they never leave the coordinator in a half-updated state.
func (c *Coordinator) Tick(ctx context.Context) (err error) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	began := time.Now()
	result := metrics.TickOK
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result = metrics.TickPanic
		} else if err != nil {
			result = metrics.TickError
		}
		if err != nil {
			monitoring.CaptureException(err, map[string]string{"component": "playback", "result": result})
		}
		c.mu.Lock()
		c.state.LastTick = c.opts.Clock.Now()
		c.state.LastError = ""
		if err != nil {
			c.state.LastError = err.Error()
		}
		active := c.state.ActiveEntryID != ""
		c.mu.Unlock()
		_ = c.opts.Sink.RecordTick(metrics.TickEvent{
			Result:   result,
			Duration: time.Since(began),
			Active:   active,
			Time:     c.opts.Clock.Now(),
		})
	}()
	return c.tick(ctx)
}

func (c *Coordinator) tick(ctx context.Context) error {
	entries, err := c.store.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("read schedule: %w", err)
	}
	items, err := c.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	settings, err := c.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	cfg := settings.Playback()
	cat := model.NewCatalog(items)
	sorted := model.SortedEntries(entries)
	now := clock.NowMs(c.opts.Clock)

	c.mu.Lock()
	active, scene := c.state.ActiveEntryID, c.state.ActiveScene
	c.mu.Unlock()

	foundActive := false
	for i, e := range sorted {
		item, ok := cat.Lookup(e.Name)
		if !ok {
			continue
		}
		if e.ID == active {
			foundActive = true
		}
		stop := e.StartMs + item.EffectiveDuration()

		if e.StartMs <= now && now < stop && e.ID != active {
			target := ""
			if cfg.IdleSceneEnabled {
				target = cfg.VideoScene
				if scene != cfg.VideoScene {
					if err := c.setScene(ctx, cfg.VideoScene); err != nil {
						return err
					}
				}
			}
			return c.play(ctx, e, stop, filepath.Join(cfg.MediaRoot, e.Name), target)
		}

		if e.ID == active && now >= stop {
			hasNext := i+1 < len(sorted) && sorted[i+1].StartMs == stop
			return c.stop(ctx, e, stop, !hasNext)
		}
	}

	if active != "" && !foundActive {
		c.opts.Logger.Infof("active entry %s left the schedule", active)
		c.setActive(State{})
		active = ""
	}

	if cfg.IdleSceneEnabled && active == "" && scene != cfg.IdleScene {
		return c.setScene(ctx, cfg.IdleScene)
	}
	return nil
}

func (c *Coordinator) play(ctx context.Context, e model.ScheduleEntry, stop int64, media, scene string) error {
	src := SourceID(e.Name, e.ID)
	ev := events.PlaybackEvent{Action: events.ActionPlay, EntryID: e.ID, Name: e.Name, SourceID: src, Scene: scene, StartMs: e.StartMs, StopMs: stop}
	var res PlayResult
	err := c.issue(ctx, ev, func(ctx context.Context) error {
		var err error
		res, err = c.renderer.Play(ctx, PlayRequest{MediaPath: media, SourceID: src, Scene: scene, Layer: c.opts.Layer})
		return err
	})
	if err != nil {
		return fmt.Errorf("play %s: %w", e.Name, err)
	}
	c.mu.Lock()
	c.scene = scene
	c.mu.Unlock()
	c.setActive(State{ActiveEntryID: e.ID, ActiveName: e.Name, ActiveSource: src, Handle: res.Handle})
	c.opts.Logger.Infof("playing %s (%s)", e.Name, e.ID)
	return nil
}

func (c *Coordinator) stop(ctx context.Context, e model.ScheduleEntry, stop int64, clear bool) error {
	c.mu.Lock()
	scene := c.scene
	c.mu.Unlock()
	src := SourceID(e.Name, e.ID)
	ev := events.PlaybackEvent{Action: events.ActionStop, EntryID: e.ID, Name: e.Name, SourceID: src, Scene: scene, StartMs: e.StartMs, StopMs: stop, Clear: clear}
	err := c.issue(ctx, ev, func(ctx context.Context) error {
		return c.renderer.Stop(ctx, StopRequest{SourceID: src, Scene: scene, Clear: clear})
	})
	if err != nil {
		return fmt.Errorf("stop %s: %w", e.Name, err)
	}
	c.setActive(State{})
	c.opts.Logger.Infof("stopped %s (clear=%t)", e.Name, clear)
	return nil
}

func (c *Coordinator) setScene(ctx context.Context, scene string) error {
	ev := events.PlaybackEvent{Action: events.ActionScene, Scene: scene}
	if err := c.issue(ctx, ev, func(ctx context.Context) error {
		return c.renderer.SetScene(ctx, scene)
	}); err != nil {
		return fmt.Errorf("set scene %s: %w", scene, err)
	}
	c.mu.Lock()
	c.state.ActiveScene = scene
	c.mu.Unlock()
	c.opts.Logger.Debugf("switched to scene %s", scene)
	return nil
}

// setActive replaces the active-entry fields of the state.
func (c *Coordinator) setActive(s State) {
	c.mu.Lock()
	c.state.ActiveEntryID = s.ActiveEntryID
	c.state.ActiveName = s.ActiveName
	c.state.ActiveSource = s.ActiveSource
	c.state.Handle = s.Handle
	c.mu.Unlock()
}

// issue runs one renderer call and reports it on the event bus and the
// metrics sink.
func (c *Coordinator) issue(ctx context.Context, ev events.PlaybackEvent, call func(context.Context) error) error {
	began := time.Now()
	err := call(ctx)
	ev.Time = c.opts.Clock.Now()
	if err != nil {
		ev.Error = err.Error()
	}
	if c.opts.Events != nil {
		c.opts.Events.Publish(ev)
	}
	if rerr := c.opts.Sink.RecordCommand(metrics.CommandEvent{
		Action:   ev.Action,
		EntryID:  ev.EntryID,
		Name:     ev.Name,
		SourceID: ev.SourceID,
		Scene:    ev.Scene,
		Success:  err == nil,
		Latency:  time.Since(began),
		Time:     ev.Time,
	}); rerr != nil {
		c.opts.Logger.Warnf("record command: %v", rerr)
	}
	return err
}

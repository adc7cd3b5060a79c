package contest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

func newClock(t *testing.T, now time.Time) (*Clock, *store.MemoryStore, *clock.FakeClock) {
	t.Helper()
	st := store.NewMemoryStore()
	fc := clock.NewFakeClock(now)
	return New(st, nil, WithTimeSource(fc)), st, fc
}

func TestAnchorLazyInit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	c, st, fc := newClock(t, now)

	a, err := c.Anchor(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), a)

	fc.Advance(time.Hour)
	a2, err := c.Anchor(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, a2)

	stored, ok, err := st.ContestAnchor(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, a, stored)
}

func TestStartShiftsEveryEntry(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newClock(t, time.UnixMilli(50000))
	require.NoError(t, st.SetContestAnchor(ctx, 10000))
	orig := []model.ScheduleEntry{
		{ID: "1", Name: "a", StartMs: 12000},
		{ID: "2", Name: "b", StartMs: 30000},
		{ID: "3", Name: "ghost", StartMs: 9000},
	}
	require.NoError(t, st.WriteSchedule(ctx, orig))

	anchor, err := c.Start(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), anchor)

	got, err := st.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(orig))
	for i := range orig {
		assert.Equal(t, orig[i].StartMs-10000, got[i].StartMs-anchor, "offset from anchor preserved for %s", orig[i].ID)
		assert.Equal(t, orig[i].ID, got[i].ID)
	}

	earlier := int64(1000)
	_, err = c.Start(ctx, &earlier)
	require.NoError(t, err)
	got, err = st.Schedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got[0].StartMs)
}

// failingRebase computes the update but fails to persist it.
type failingRebase struct {
	*store.MemoryStore
}

func (failingRebase) Rebase(context.Context, int64, []model.ScheduleEntry) error {
	return errors.New("disk full")
}

func (f failingRebase) UpdateContest(ctx context.Context, fn store.ContestUpdate) error {
	anchor, ok, _ := f.MemoryStore.ContestAnchor(ctx)
	entries, _ := f.MemoryStore.Schedule(ctx)
	if _, _, err := fn(anchor, ok, entries); err != nil {
		return err
	}
	return errors.New("disk full")
}

func TestStartFailureLeavesPairUntouched(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SetContestAnchor(ctx, 100))
	require.NoError(t, mem.WriteSchedule(ctx, []model.ScheduleEntry{{ID: "1", Name: "a", StartMs: 200}}))
	c := New(failingRebase{mem}, nil, WithTimeSource(clock.NewFakeClockMs(5000)))

	_, err := c.Start(ctx, nil)
	require.Error(t, err)

	anchor, _, _ := mem.ContestAnchor(ctx)
	entries, _ := mem.Schedule(ctx)
	assert.Equal(t, int64(100), anchor)
	assert.Equal(t, int64(200), entries[0].StartMs)
}

// interleavedWrite appends an entry just before every contest update runs.
type interleavedWrite struct {
	*store.MemoryStore
	entry model.ScheduleEntry
}

func (w interleavedWrite) UpdateContest(ctx context.Context, fn store.ContestUpdate) error {
	entries, _ := w.MemoryStore.Schedule(ctx)
	_ = w.MemoryStore.WriteSchedule(ctx, append(entries, w.entry))
	return w.MemoryStore.UpdateContest(ctx, fn)
}

func TestStartKeepsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SetContestAnchor(ctx, 1000))
	require.NoError(t, mem.WriteSchedule(ctx, []model.ScheduleEntry{{ID: "old", Name: "a", StartMs: 2000}}))
	st := interleavedWrite{MemoryStore: mem, entry: model.ScheduleEntry{ID: "new", Name: "b", StartMs: 99000}}
	c := New(st, nil, WithTimeSource(clock.NewFakeClockMs(5000)))

	target := int64(11000)
	_, err := c.Start(ctx, &target)
	require.NoError(t, err)

	entries, err := mem.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ScheduleEntry{ID: "old", Name: "a", StartMs: 12000}, entries[0])
	assert.Equal(t, model.ScheduleEntry{ID: "new", Name: "b", StartMs: 109000}, entries[1])
}

func TestStartConcurrentWithEdits(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SetContestAnchor(ctx, 0))
	c := New(mem, nil, WithTimeSource(clock.NewFakeClockMs(5000)))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = mem.UpdateSchedule(ctx, func(entries []model.ScheduleEntry) ([]model.ScheduleEntry, error) {
				return append(entries, model.ScheduleEntry{ID: strconv.Itoa(i), Name: "a"}), nil
			})
		}(i)
		go func() {
			defer wg.Done()
			target := int64(1000)
			_, _ = c.Start(ctx, &target)
		}()
	}
	wg.Wait()

	entries, err := mem.Schedule(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func TestStartAt(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("CEST", 2*3600)
	st := store.NewMemoryStore()
	fc := clock.NewFakeClock(time.Date(2026, 5, 4, 23, 30, 0, 0, time.UTC))
	c := New(st, nil, WithTimeSource(fc), WithLocation(loc))

	anchor, err := c.StartAt(ctx, 9, 15)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 15, 0, 0, loc).UnixMilli(), anchor)

	_, err = c.StartAt(ctx, 24, 0)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestTemplateVersioning(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newClock(t, time.UnixMilli(1000))

	v, err := c.SaveTemplate(ctx, "finals")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	require.NoError(t, st.WriteSchedule(ctx, []model.ScheduleEntry{{ID: "1", Name: "a", StartMs: 2000}}))
	v, err = c.SaveTemplate(ctx, "finals")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = c.SaveTemplate(ctx, "heats")
	require.NoError(t, err)

	first, err := st.LoadTemplate(ctx, "finals", 0)
	require.NoError(t, err)
	assert.Empty(t, first.Schedule)

	names, err := c.Templates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"finals", "heats"}, names)

	_, err = c.SaveTemplate(ctx, "../etc")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLoadTemplateRebasesOntoToday(t *testing.T) {
	ctx := context.Background()
	saved := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	at := func(day time.Time, h, m int) int64 {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC).UnixMilli()
	}

	c, st, fc := newClock(t, saved)
	require.NoError(t, st.SetContestAnchor(ctx, at(saved, 10, 0)))
	require.NoError(t, st.WriteSchedule(ctx, []model.ScheduleEntry{
		{ID: "1", Name: "a", StartMs: at(saved, 10, 30)},
		{ID: "2", Name: "b", StartMs: at(saved.AddDate(0, 0, 1), 1, 0)},
	}))
	_, err := c.SaveTemplate(ctx, "day")
	require.NoError(t, err)

	today := time.Date(2026, 2, 20, 7, 45, 0, 0, time.UTC)
	fc.Set(today)
	anchor, err := c.LoadTemplate(ctx, "day")
	require.NoError(t, err)
	assert.Equal(t, at(today, 10, 0), anchor)

	got, err := st.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, at(today, 10, 30), got[0].StartMs)
	// Not rolled over midnight: lands before the anchor on the same day.
	assert.Equal(t, at(today, 1, 0), got[1].StartMs)
	assert.Less(t, got[1].StartMs, anchor)

	stored, _, err := st.ContestAnchor(ctx)
	require.NoError(t, err)
	assert.Equal(t, anchor, stored)
}

func TestLoadTemplatePicksHighestVersion(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newClock(t, time.UnixMilli(0))
	require.NoError(t, st.SaveTemplate(ctx, "t", 0, model.Template{AnchorMs: 0, Schedule: []model.ScheduleEntry{{ID: "old"}}}))
	require.NoError(t, st.SaveTemplate(ctx, "t", 2, model.Template{AnchorMs: 0, Schedule: []model.ScheduleEntry{{ID: "new"}}}))

	_, err := c.LoadTemplate(ctx, "t")
	require.NoError(t, err)
	got, _ := st.Schedule(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)

	_, err = c.LoadTemplate(ctx, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestState(t *testing.T) {
	ctx := context.Background()
	c, st, fc := newClock(t, time.UnixMilli(10000))
	require.NoError(t, st.SetContestAnchor(ctx, 25000))

	s, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{StartMs: 25000, CurrentMs: 10000, Mode: ModeBefore, DeltaMs: 15000}, s)

	fc.SetMs(40000)
	s, err = c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeRunning, s.Mode)
	assert.Equal(t, int64(15000), s.DeltaMs)
}

package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
	"github.com/kilianp07/obsched/internal/clock"
)

type fixedAnchor int64

func (a fixedAnchor) Anchor(context.Context) (int64, error) { return int64(a), nil }

func newTestService(t *testing.T, nowMs int64) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.WriteCatalog(context.Background(), []model.CatalogItem{
		{ID: "v1", Name: "a", DurationMs: 5000, IsVideo: true},
		{ID: "v2", Name: "b", DurationMs: 4000, IsVideo: true},
		{ID: "act", Name: "Lunch", DurationMs: 0},
	}))
	svc := NewService(st, fixedAnchor(42), clock.NewFakeClockMs(nowMs), nil)
	svc.SetIDGenerator(seqIDs())
	return svc, st
}

func TestServiceAddSnapsToGrid(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 2, 13, 0, time.UTC).UnixMilli()
	svc, st := newTestService(t, base)

	e, err := svc.Add(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC).UnixMilli(), e.StartMs)
	assert.Equal(t, "a", e.Name)

	entries, err := st.Schedule(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.Add(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceAddOnGridBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC).UnixMilli()
	svc, _ := newTestService(t, base)
	e, err := svc.Add(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, base+addSlotMs, e.StartMs)
}

func TestServiceRescheduleAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)
	require.NoError(t, svc.Replace(ctx, []model.ScheduleEntry{{ID: "x", Name: "a", StartMs: 1000}}))

	changed, err := svc.Reschedule(ctx, "x", 1000)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.Reschedule(ctx, "x", 9000)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = svc.Reschedule(ctx, "nope", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	removed, err := svc.Remove(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.Remove(ctx, "x")
	require.NoError(t, err)
	assert.True(t, removed)
	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServiceReplaceAssignsIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)
	require.NoError(t, svc.Replace(ctx, []model.ScheduleEntry{{Name: "a", StartMs: 1}}))
	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "id-1", entries[0].ID)
}

func TestServiceReplaceDeduplicatesIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)
	require.NoError(t, svc.Replace(ctx, []model.ScheduleEntry{
		{ID: "x", Name: "a", StartMs: 1},
		{ID: "x", Name: "b", StartMs: 2},
		{Name: "a", StartMs: 3},
	}))
	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"x", "id-1", "id-2"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestServiceConcurrentEdits(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, 0)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, "v1")
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			start := int64(i+1) * 3_600_000
			_, err := svc.Bulk(ctx, []Proposal{{Name: "b", StartMs: &start}}, ModeShift)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := st.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2*n)
	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 2*n)
}

func TestServiceBulkPersists(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, 0)
	require.NoError(t, st.WriteSchedule(ctx, existingA()))

	out, err := svc.Bulk(ctx, []Proposal{{Name: "b", StartMs: ptr(3000)}}, ModeShift)
	require.NoError(t, err)
	require.Len(t, out, 2)

	stored, err := st.Schedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, out, stored)

	_, err = svc.Bulk(ctx, nil, Mode("x"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestServiceViewSkipsDangling(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)
	require.NoError(t, svc.Replace(ctx, []model.ScheduleEntry{
		{ID: "2", Name: "b", StartMs: 20000},
		{ID: "1", Name: "Lunch", StartMs: 1000},
		{ID: "3", Name: "ghost", StartMs: 500},
	}))
	v, err := svc.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ContestTimestamp)
	assert.Equal(t, []ViewEntry{
		{ID: "1", StartMs: 1000, StopMs: 61000, Name: "Lunch"},
		{ID: "2", StartMs: 20000, StopMs: 24000, Name: "b"},
	}, v.Schedule)
}

func TestCascadeHelpers(t *testing.T) {
	entries := []model.ScheduleEntry{
		{ID: "1", Name: "a", StartMs: 0},
		{ID: "2", Name: "b", StartMs: 1},
		{ID: "3", Name: "a", StartMs: 2},
	}
	renamed := RenameItem(entries, "a", "z")
	assert.Equal(t, "z", renamed[0].Name)
	assert.Equal(t, "b", renamed[1].Name)
	assert.Equal(t, "z", renamed[2].Name)
	assert.Equal(t, "a", entries[0].Name)

	removed := RemoveItem(entries, "a")
	require.Len(t, removed, 1)
	assert.Equal(t, "2", removed[0].ID)
}

func TestCurrentStatus(t *testing.T) {
	cat := conflictCatalog()
	entries := []model.ScheduleEntry{
		{ID: "1", Name: "a", StartMs: 10000},
		{ID: "2", Name: "ghost", StartMs: 0},
	}

	st := CurrentStatus(12000, entries, cat)
	assert.Equal(t, StatusPlaying, st.Status)
	require.NotNil(t, st.SecondsLeft)
	assert.Equal(t, int64(3), *st.SecondsLeft)
	assert.Equal(t, "a", *st.Name)

	st = CurrentStatus(15000, entries, cat)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Nil(t, st.Name)

	st = CurrentStatus(-10000, entries, cat)
	assert.Equal(t, StatusSoon, st.Status)
	require.NotNil(t, st.SecondsUntil)
	assert.Equal(t, int64(20), *st.SecondsUntil)

	st = CurrentStatus(-30000, entries, cat)
	assert.Equal(t, StatusIdle, st.Status)
}

func TestSummarize(t *testing.T) {
	cat := conflictCatalog()
	entries := []model.ScheduleEntry{
		{ID: "1", Name: "a", StartMs: 0},
		{ID: "2", Name: "b", StartMs: 6000},
		{ID: "3", Name: "c", StartMs: 9000},
		{ID: "4", Name: "ghost", StartMs: 100},
	}
	st := Summarize(entries, cat)
	assert.Equal(t, 3, st.Entries)
	assert.Equal(t, 1, st.Dangling)
	assert.Equal(t, 1, st.Overlaps)
	assert.Equal(t, int64(11000), st.TotalMs)
	assert.InDelta(t, 11000.0/3, st.MeanDurationMs, 1e-9)
	assert.InDelta(t, 1000, st.MeanGapMs, 1e-9)
	assert.Equal(t, int64(0), st.FirstStartMs)
	assert.Equal(t, int64(11000), st.LastStopMs)
	assert.InDelta(t, 1.0, st.Utilization, 1e-9)

	empty := Summarize(nil, cat)
	assert.Zero(t, empty.Entries)
	assert.Zero(t, empty.StdDevDurationMs)
}

package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/obsched/core/model"
)

func ptr(v int64) *int64 { return &v }

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func conflictCatalog() model.Catalog {
	return model.NewCatalog([]model.CatalogItem{
		{ID: "1", Name: "a", DurationMs: 5000, IsVideo: true},
		{ID: "2", Name: "b", DurationMs: 4000, IsVideo: true},
		{ID: "3", Name: "c", DurationMs: 2000, IsVideo: false},
	})
}

func existingA() []model.ScheduleEntry {
	return []model.ScheduleEntry{{ID: "ea", Name: "a", StartMs: 1000}}
}

func TestResolveSkipKeepsExisting(t *testing.T) {
	out, err := Resolve(existingA(), []Proposal{{Name: "b", StartMs: ptr(3000)}}, conflictCatalog(), ModeSkip, seqIDs())
	require.NoError(t, err)
	assert.Equal(t, existingA(), out)
}

func TestResolveOverwriteRemovesExisting(t *testing.T) {
	out, err := Resolve(existingA(), []Proposal{{Name: "b", StartMs: ptr(3000)}}, conflictCatalog(), ModeOverwrite, seqIDs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Name)
	assert.Equal(t, int64(3000), out[0].StartMs)
	assert.Equal(t, "id-1", out[0].ID)
}

func TestResolveShiftPushesForward(t *testing.T) {
	cat := conflictCatalog()
	out, err := Resolve(existingA(), []Proposal{{ID: "nb", Name: "b", StartMs: ptr(3000)}}, cat, ModeShift, seqIDs())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, existingA()[0], out[0])
	assert.Equal(t, "nb", out[1].ID)
	assert.Equal(t, model.Interval{StartMs: 6000, StopMs: 10000}, out[1].Interval(cat))
}

func TestResolveShiftCascadesThroughPlacedEntries(t *testing.T) {
	cat := conflictCatalog()
	props := []Proposal{
		{Name: "b", StartMs: ptr(2000)},
		{Name: "c", StartMs: ptr(2500)},
	}
	out, err := Resolve(existingA(), props, cat, ModeShift, seqIDs())
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(6000), out[1].StartMs)
	assert.Equal(t, int64(10000), out[2].StartMs)
	assertNoOverlaps(t, out, cat)
}

func TestResolveDropsIncompleteProposals(t *testing.T) {
	props := []Proposal{
		{Name: "", StartMs: ptr(50000)},
		{Name: "b"},
		{Name: "b", StartMs: ptr(50000)},
	}
	out, err := Resolve(nil, props, conflictCatalog(), ModeSkip, seqIDs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(50000), out[0].StartMs)
}

func TestResolveReassignsTakenIDs(t *testing.T) {
	existing := []model.ScheduleEntry{{ID: "e1", Name: "a", StartMs: 0}}
	props := []Proposal{
		{ID: "e1", Name: "b", StartMs: ptr(500000)},
		{ID: "e1", Name: "b", StartMs: ptr(500000)},
		{ID: "p1", Name: "b", StartMs: ptr(900000)},
	}
	out, err := Resolve(existing, props, conflictCatalog(), ModeShift, seqIDs())
	require.NoError(t, err)
	require.Len(t, out, 4)

	ids := map[string]bool{}
	for _, e := range out {
		assert.False(t, ids[e.ID], "duplicate id %s", e.ID)
		ids[e.ID] = true
	}
	assert.Equal(t, "e1", out[0].ID)
	assert.Equal(t, "id-1", out[1].ID)
	assert.Equal(t, "id-2", out[2].ID)
	assert.Equal(t, "p1", out[3].ID)
}

func TestProposalDecoding(t *testing.T) {
	var props []Proposal
	require.NoError(t, json.Unmarshal([]byte(`[
		{"uuid":"x","name":"a","start_timestamp":1000},
		{"name":"a","start_timestamp":"2000"},
		{"name":"a","start_timestamp":3e3},
		{"name":"a","start_timestamp":"abc"},
		{"name":"a","start_timestamp":1000.5},
		{"name":"a","start_timestamp":null},
		{"name":7,"start_timestamp":4000},
		"junk"
	]`), &props))
	require.Len(t, props, 8)

	assert.Equal(t, Proposal{ID: "x", Name: "a", StartMs: ptr(1000)}, props[0])
	assert.Equal(t, ptr(2000), props[1].StartMs)
	assert.Equal(t, ptr(3000), props[2].StartMs)
	for _, p := range props[3:6] {
		assert.Nil(t, p.StartMs)
	}
	assert.Empty(t, props[6].Name)
	assert.Equal(t, Proposal{}, props[7])

	out, err := Resolve(nil, props, conflictCatalog(), ModeShift, seqIDs())
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestResolveInvalidMode(t *testing.T) {
	_, err := Resolve(existingA(), nil, conflictCatalog(), Mode("merge"), seqIDs())
	assert.True(t, errors.Is(err, ErrInvalidMode))

	_, err = ParseMode("bogus")
	assert.ErrorIs(t, err, ErrInvalidMode)
	m, err := ParseMode(" Shift ")
	require.NoError(t, err)
	assert.Equal(t, ModeShift, m)
}

func TestResolveProperties(t *testing.T) {
	cat := conflictCatalog()
	existing := []model.ScheduleEntry{
		{ID: "e1", Name: "a", StartMs: 0},
		{ID: "e2", Name: "b", StartMs: 10000},
		{ID: "e3", Name: "c", StartMs: 20000},
	}
	props := []Proposal{
		{Name: "a", StartMs: ptr(3000)},
		{Name: "b", StartMs: ptr(15000)},
		{Name: "c", StartMs: ptr(30000)},
		{Name: "a", StartMs: ptr(11000)},
	}

	t.Run("skip", func(t *testing.T) {
		out, err := Resolve(existing, props, cat, ModeSkip, seqIDs())
		require.NoError(t, err)
		assert.Equal(t, existing, out[:len(existing)])
		for _, n := range out[len(existing):] {
			for _, e := range existing {
				assert.False(t, n.Interval(cat).Overlaps(e.Interval(cat)), "%v overlaps %v", n, e)
			}
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		out, err := Resolve(existing, props, cat, ModeOverwrite, seqIDs())
		require.NoError(t, err)
		var added []model.ScheduleEntry
		for _, e := range out {
			if model.FindEntry(existing, e.ID) < 0 {
				added = append(added, e)
			}
		}
		assert.Len(t, added, len(props))
		for _, e := range out {
			if model.FindEntry(existing, e.ID) < 0 {
				continue
			}
			for _, n := range added {
				assert.False(t, n.Interval(cat).Overlaps(e.Interval(cat)))
			}
		}
	})

	t.Run("shift", func(t *testing.T) {
		out, err := Resolve(existing, props, cat, ModeShift, seqIDs())
		require.NoError(t, err)
		require.Len(t, out, len(existing)+len(props))
		assertNoOverlaps(t, out, cat)
		for i, p := range props {
			assert.GreaterOrEqual(t, out[len(existing)+i].StartMs, *p.StartMs)
		}
	})
}

func assertNoOverlaps(t *testing.T, entries []model.ScheduleEntry, cat model.Catalog) {
	t.Helper()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			assert.False(t, entries[i].Interval(cat).Overlaps(entries[j].Interval(cat)),
				"%v overlaps %v", entries[i], entries[j])
		}
	}
}

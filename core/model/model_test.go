package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalOverlapsSymmetric(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 10}, Interval{5, 15}, true},
		{Interval{0, 10}, Interval{10, 20}, false},
		{Interval{0, 10}, Interval{2, 3}, true},
		{Interval{20, 30}, Interval{0, 10}, false},
		{Interval{0, 10}, Interval{0, 10}, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.a.Overlaps(c.b), "%v vs %v", c.a, c.b)
		assert.Equal(t, c.a.Overlaps(c.b), c.b.Overlaps(c.a), "symmetry %v vs %v", c.a, c.b)
	}
}

func TestCatalogEffectiveDuration(t *testing.T) {
	c := NewCatalog([]CatalogItem{
		{Name: "a.mp4", DurationMs: 5000, IsVideo: true},
		{Name: "unprobed.mp4", IsVideo: true},
	})
	assert.Equal(t, int64(5000), c.EffectiveDuration("a.mp4"))
	assert.Equal(t, DefaultDurationMs, c.EffectiveDuration("unprobed.mp4"))
	assert.Equal(t, DefaultDurationMs, c.EffectiveDuration("missing"))

	e := ScheduleEntry{ID: "1", Name: "a.mp4", StartMs: 1000}
	assert.Equal(t, Interval{1000, 6000}, e.Interval(c))
	assert.Greater(t, ScheduleEntry{Name: "zero"}.StopMs(c), int64(0))
}

func TestNewCatalogActivitiesWin(t *testing.T) {
	c := NewCatalog([]CatalogItem{
		{ID: "act", Name: "Break", DurationMs: 1000},
		{ID: "vid", Name: "Break", DurationMs: 2000, IsVideo: true},
	})
	it, ok := c.Lookup("Break")
	assert.True(t, ok)
	assert.Equal(t, "act", it.ID)
}

func TestSortedEntriesStable(t *testing.T) {
	in := []ScheduleEntry{{ID: "c", StartMs: 30}, {ID: "a", StartMs: 10}, {ID: "b", StartMs: 10}}
	out := SortedEntries(in)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "c", in[0].ID, "input must not be reordered")
}

func TestSettingsPlayback(t *testing.T) {
	s := Settings{
		SettingIdleSceneEnabled: "Yes",
		SettingServerVideoDir:   "/srv/videos",
	}
	p := s.Playback()
	assert.True(t, p.IdleSceneEnabled)
	assert.Equal(t, DefaultIdleScene, p.IdleScene)
	assert.Equal(t, DefaultVideoScene, p.VideoScene)
	assert.Equal(t, "/srv/videos", p.MediaRoot)

	s[SettingOBSVideoDir] = `C:\videos`
	s[SettingIdleSceneEnabled] = false
	p = s.Playback()
	assert.False(t, p.IdleSceneEnabled)
	assert.Equal(t, `C:\videos`, p.MediaRoot)
	assert.Equal(t, "/srv/videos", s.VideoDir())
	assert.Equal(t, ".", Settings{}.Playback().MediaRoot)
}

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corecatalog "github.com/kilianp07/obsched/core/catalog"
	"github.com/kilianp07/obsched/core/model"
	"github.com/kilianp07/obsched/core/store"
)

type mapProber struct {
	durations map[string]int64
	calls     int
}

func (p *mapProber) Probe(_ context.Context, path string) (int64, error) {
	p.calls++
	d, ok := p.durations[filepath.Base(path)]
	if !ok {
		return 0, errors.New("unreadable")
	}
	return d, nil
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func newScanFixture(t *testing.T) (*Scanner, *store.MemoryStore, *mapProber, string) {
	t.Helper()
	dir := t.TempDir()
	st := store.NewMemoryStore()
	require.NoError(t, st.WriteSettings(context.Background(), model.Settings{model.SettingServerVideoDir: dir}))
	p := &mapProber{durations: map[string]int64{"a.mp4": 5000, "b.MKV": 7000}}
	return NewScanner(st, p, ScannerConfig{Interval: time.Hour}, nil), st, p, dir
}

func TestRefreshAddsVideos(t *testing.T) {
	ctx := context.Background()
	sc, st, _, dir := newScanFixture(t)
	touch(t, dir, "a.mp4")
	touch(t, dir, "b.MKV")
	touch(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755))
	require.NoError(t, st.WriteCatalog(ctx, []model.CatalogItem{{ID: "act", Name: "Break", DurationMs: 1000}}))

	require.NoError(t, sc.Refresh(ctx, true, false))
	items, err := st.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	cat := model.NewCatalog(items)
	a, ok := cat.Lookup("a.mp4")
	require.True(t, ok)
	assert.Equal(t, VideoID("a.mp4"), a.ID)
	assert.Equal(t, int64(5000), a.DurationMs)
	assert.True(t, a.IsVideo)
	_, ok = cat.Lookup("Break")
	assert.True(t, ok)
}

func TestRefreshThrottledUnlessForced(t *testing.T) {
	ctx := context.Background()
	sc, st, _, dir := newScanFixture(t)
	require.NoError(t, sc.Refresh(ctx, false, false))
	touch(t, dir, "a.mp4")
	require.NoError(t, sc.Refresh(ctx, false, false))
	items, _ := st.Catalog(ctx)
	assert.Empty(t, items)

	require.NoError(t, sc.Refresh(ctx, true, false))
	items, _ = st.Catalog(ctx)
	assert.Len(t, items, 1)
}

func TestRefreshReprobesUnknownAndRebuilds(t *testing.T) {
	ctx := context.Background()
	sc, st, p, dir := newScanFixture(t)
	touch(t, dir, "c.webm")
	require.NoError(t, sc.Refresh(ctx, true, false))
	items, _ := st.Catalog(ctx)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].DurationMs)

	p.durations["c.webm"] = 9000
	require.NoError(t, sc.Refresh(ctx, true, false))
	items, _ = st.Catalog(ctx)
	assert.Equal(t, int64(9000), items[0].DurationMs)

	calls := p.calls
	require.NoError(t, sc.Refresh(ctx, true, false))
	assert.Equal(t, calls, p.calls, "known durations are not probed again")

	require.NoError(t, os.Remove(filepath.Join(dir, "c.webm")))
	require.NoError(t, sc.Refresh(ctx, true, false))
	items, _ = st.Catalog(ctx)
	assert.Len(t, items, 1, "plain refresh keeps missing files")
	require.NoError(t, sc.Refresh(ctx, true, true))
	items, _ = st.Catalog(ctx)
	assert.Empty(t, items)
}

func TestRefreshWithoutDirectory(t *testing.T) {
	st := store.NewMemoryStore()
	sc := NewScanner(st, nil, ScannerConfig{}, nil)
	require.NoError(t, sc.Refresh(context.Background(), true, false))
	require.NoError(t, st.WriteSettings(context.Background(), model.Settings{model.SettingServerVideoDir: "/does/not/exist"}))
	require.NoError(t, sc.Refresh(context.Background(), true, false))
}

func TestRunPicksUpNewFiles(t *testing.T) {
	sc, st, _, dir := newScanFixture(t)
	sc.cfg.Watch = true
	sc.cfg.Debounce = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { sc.Run(ctx); close(done) }()

	time.Sleep(50 * time.Millisecond)
	touch(t, dir, "a.mp4")
	assert.Eventually(t, func() bool {
		items, _ := st.Catalog(context.Background())
		return len(items) == 1
	}, 2*time.Second, 50*time.Millisecond)
	cancel()
	<-done
}

func TestParseSeconds(t *testing.T) {
	ms, err := parseSeconds("12.3456\n")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), ms)
	ms, err = parseSeconds("N/A")
	require.NoError(t, err)
	assert.Zero(t, ms)
	_, err = parseSeconds("abc")
	assert.Error(t, err)
}

func TestFFProbeWithoutBinary(t *testing.T) {
	d, err := FFProbe{}.Probe(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.Zero(t, d)
	assert.Equal(t, "/opt/ffprobe", ResolveFFProbe("/opt/ffprobe"))
	t.Setenv("FFPROBE_PATH", "/env/ffprobe")
	assert.Equal(t, "/env/ffprobe", ResolveFFProbe(""))
}

func TestLibraryRenameAndArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "archive")
	touch(t, dir, "a.mp4")
	touch(t, dir, "b.mp4")
	lib := Library{}

	require.NoError(t, lib.Rename(dir, "a.mp4", "c.mp4"))
	assert.FileExists(t, filepath.Join(dir, "c.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "a.mp4"))
	assert.ErrorIs(t, lib.Rename(dir, "c.mp4", "b.mp4"), corecatalog.ErrNameTaken)
	require.NoError(t, lib.Rename(dir, "gone.mp4", "new.mp4"))

	first, err := lib.Archive(dir, "b.mp4", archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "b.mp4"), first)
	touch(t, dir, "b.mp4")
	second, err := lib.Archive(dir, "b.mp4", archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "b (1).mp4"), second)
	assert.FileExists(t, second)
	assert.NoFileExists(t, filepath.Join(dir, "b.mp4"))
}

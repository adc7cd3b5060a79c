package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/obsched/config"
	"github.com/kilianp07/obsched/core/factory"
	"github.com/kilianp07/obsched/internal/testutil"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Backend = backend
	cfg.Store.Path = filepath.Join(t.TempDir(), "state")
	cfg.Server.Address = freeAddr(t)
	cfg.Catalog.FFProbePath = "/nonexistent/ffprobe"
	watch := false
	cfg.Catalog.Watch = &watch
	cfg.OBS.Port = "1"
	cfg.OBS.Host = "127.0.0.1"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenCore(t *testing.T) {
	for _, backend := range []string{"file", "sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			core, err := OpenCore(testConfig(t, backend))
			require.NoError(t, err)
			defer core.Close()

			ctx := context.Background()
			anchor, err := core.Contest.Anchor(ctx)
			require.NoError(t, err)
			assert.Positive(t, anchor)
			entries, err := core.Schedule.Entries(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestOpenCoreUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Store.Backend = "redis"
	_, err := OpenCore(cfg)
	assert.Error(t, err)
}

func TestServiceServesAPI(t *testing.T) {
	cfg := testConfig(t, "memory")
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, testutil.WaitForHTTP(waitCtx, fmt.Sprintf("http://%s/health", cfg.Server.Address)))

	resp, err := http.Get(fmt.Sprintf("http://%s/api/playback", cfg.Server.Address))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceExportsTickMetrics(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Playback.TickIntervalMS = 20
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.Metrics.PrometheusPort = freeAddr(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, testutil.WaitForMetric(waitCtx, "http://"+cfg.Metrics.PrometheusPort+"/metrics", `playback_ticks_total{result="ok"}`))
}

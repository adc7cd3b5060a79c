// Package app wires the configured store, services and adapters into a
// running scheduler.
package app

import (
	"fmt"

	"github.com/kilianp07/obsched/config"
	corecatalog "github.com/kilianp07/obsched/core/catalog"
	"github.com/kilianp07/obsched/core/contest"
	"github.com/kilianp07/obsched/core/schedule"
	corestore "github.com/kilianp07/obsched/core/store"
	infracatalog "github.com/kilianp07/obsched/infra/catalog"
	"github.com/kilianp07/obsched/infra/logger"
	"github.com/kilianp07/obsched/infra/store"
	"github.com/kilianp07/obsched/internal/clock"
)

// Core holds the store and the domain services. The CLI uses it directly
// for offline edits; Service adds the renderer and background loops.
type Core struct {
	Store    corestore.Store
	Contest  *contest.Clock
	Schedule *schedule.Service
	Catalog  *corecatalog.Service
	Scanner  *infracatalog.Scanner
}

// OpenCore opens the configured store and builds the services on top of it.
func OpenCore(cfg *config.Config) (*Core, error) {
	st, err := store.Open(cfg.Store.Module())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	loc, err := cfg.Contest.Location()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	clk := clock.RealClock{}
	cc := contest.New(st, logger.New("contest"), contest.WithLocation(loc), contest.WithTimeSource(clk))

	prober := infracatalog.FFProbe{
		Path:    infracatalog.ResolveFFProbe(cfg.Catalog.FFProbePath),
		Timeout: cfg.Catalog.ProbeTimeout(),
	}
	scanLog := logger.New("scanner")
	if prober.Path == "" {
		scanLog.Warnf("ffprobe not found, video durations will be unknown")
	}
	scanner := infracatalog.NewScanner(st, prober, infracatalog.ScannerConfig{
		Interval: cfg.Catalog.ScanInterval(),
		Watch:    cfg.Catalog.WatchEnabled(),
	}, scanLog)

	return &Core{
		Store:    st,
		Contest:  cc,
		Schedule: schedule.NewService(st, cc, clk, logger.New("schedule")),
		Catalog:  corecatalog.NewService(st, infracatalog.Library{}, scanner, cc, clk, logger.New("catalog")),
		Scanner:  scanner,
	}, nil
}

// Close releases the store.
func (c *Core) Close() error { return c.Store.Close() }

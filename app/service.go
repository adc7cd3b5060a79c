package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/obsched/api"
	"github.com/kilianp07/obsched/config"
	"github.com/kilianp07/obsched/core/events"
	coremetrics "github.com/kilianp07/obsched/core/metrics"
	coremon "github.com/kilianp07/obsched/core/monitoring"
	"github.com/kilianp07/obsched/core/playback"
	"github.com/kilianp07/obsched/infra/logger"
	"github.com/kilianp07/obsched/infra/metrics"
	"github.com/kilianp07/obsched/infra/monitoring"
	"github.com/kilianp07/obsched/infra/mqtt"
	"github.com/kilianp07/obsched/infra/obs"
	"github.com/kilianp07/obsched/internal/clock"
	"github.com/kilianp07/obsched/internal/eventbus"
)

// Service runs the API server, the playback coordinator, the catalog
// scanner and the optional MQTT publisher.
type Service struct {
	*Core
	Coordinator *playback.Coordinator
	Renderer    *obs.Renderer

	cfg       *config.Config
	obsClient *obs.Client
	bus       *eventbus.Bus[events.PlaybackEvent]
	publisher *mqtt.Publisher
	server    *http.Server
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	core, err := OpenCore(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	client := obs.NewClient(cfg.OBS.Host, cfg.OBS.Port, cfg.OBS.Password, cfg.OBS.Timeout(), logger.New("obs"))
	renderer := obs.NewRenderer(client, cfg.OBS, logger.New("renderer"))

	bus := eventbus.New[events.PlaybackEvent]()
	coord := playback.NewCoordinator(core.Store, renderer, playback.Options{
		Interval: cfg.Playback.TickInterval(),
		Layer:    cfg.Playback.Layer,
		Clock:    clock.RealClock{},
		Logger:   logger.New("playback"),
		Sink:     sink,
		Events:   bus,
	})

	svc := &Service{
		Core:        core,
		Coordinator: coord,
		Renderer:    renderer,
		cfg:         cfg,
		obsClient:   client,
		bus:         bus,
		log:         log,
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}

	handler := api.New(api.Deps{
		Schedule: core.Schedule,
		Contest:  core.Contest,
		Catalog:  core.Catalog,
		Settings: core.Store,
		Playback: coord,
		OBS:      renderer,
		Token:    cfg.Server.Token,
	}, logger.New("api"))
	svc.server = &http.Server{Addr: cfg.Server.Address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	return svc, nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// the servers fails.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if err := s.Coordinator.Start(gctx); err != nil {
		return err
	}
	defer s.Coordinator.Stop()

	g.Go(func() error {
		s.Scanner.Run(gctx)
		return nil
	})
	if s.publisher != nil {
		g.Go(func() error {
			s.publisher.Run(gctx, s.bus)
			return nil
		})
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(gctx, port); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		s.log.Infof("API listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("api shutdown: %v", err)
		}
		return nil
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Warnf("sd_notify ready: %v", err)
	} else if ok {
		s.log.Debugf("notified systemd")
	}
	return g.Wait()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	coremon.Flush(2 * time.Second)
	s.bus.Close()
	if err := s.obsClient.Close(); err != nil {
		s.log.Warnf("obs close: %v", err)
	}
	return s.Core.Close()
}

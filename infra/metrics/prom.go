package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/obsched/core/metrics"
)

// PromSink records playback activity in Prometheus metrics.
type PromSink struct {
	commands     *prometheus.CounterVec
	commandDelay *prometheus.HistogramVec
	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	active       prometheus.Gauge
}

// NewPromSink registers playback metrics on the default Prometheus registerer.
// The Prometheus server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. Collectors already
// registered by an earlier sink are reused. A nil registerer defaults to the
// global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_commands_total",
			Help: "Renderer commands issued by the playback coordinator",
		}, []string{"action", "result"}),
		commandDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playback_command_duration_seconds",
			Help:    "Time taken by the renderer to execute a command",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_ticks_total",
			Help: "Coordinator ticks by outcome",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "playback_tick_duration_seconds",
			Help:    "Duration of a coordinator tick",
			Buckets: prometheus.DefBuckets,
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playback_active",
			Help: "1 while a scheduled entry is playing",
		}),
	}
	var err error
	if s.commands, err = register(reg, s.commands); err != nil {
		return nil, err
	}
	if s.commandDelay, err = register(reg, s.commandDelay); err != nil {
		return nil, err
	}
	if s.ticks, err = register(reg, s.ticks); err != nil {
		return nil, err
	}
	if s.tickDuration, err = register(reg, s.tickDuration); err != nil {
		return nil, err
	}
	if s.active, err = register(reg, s.active); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	result := "ok"
	if !ev.Success {
		result = "error"
	}
	s.commands.WithLabelValues(ev.Action, result).Inc()
	s.commandDelay.WithLabelValues(ev.Action).Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.ticks.WithLabelValues(ev.Result).Inc()
	s.tickDuration.Observe(ev.Duration.Seconds())
	s.active.Set(boolGauge(ev.Active))
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

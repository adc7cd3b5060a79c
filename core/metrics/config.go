package metrics

import "github.com/kilianp07/obsched/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" koanf:"sinks"`
	PrometheusPort string                 `json:"prometheus_port" koanf:"prometheus_port"`
}

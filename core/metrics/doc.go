// Package metrics defines the sinks that record playback activity. Sinks
// like the Prometheus and InfluxDB implementations in infra/metrics record
// renderer commands and coordinator ticks, and can be combined with
// NewMultiSink. NewSink returns a MultiSink automatically when several sinks
// are configured.
package metrics

// Package adapter provides adapters for plugin-mmap integration with external systems.
package adapter

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/plugin-mmap/api"
)

// PrometheusObserver exports mapping lifecycle metrics.
type PrometheusObserver struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	live        prometheus.Gauge
	mappedBytes prometheus.Gauge
}

// NewPrometheusObserver creates the collectors under namespace and registers
// them with reg.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) (*PrometheusObserver, error) {
	p := &PrometheusObserver{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mmap",
			Name:      "operations_total",
			Help:      "Total number of mapping operations by op and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mmap",
			Name:      "operation_duration_seconds",
			Help:      "Duration of mapping operations including retries.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"op"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mmap",
			Name:      "live_mappings",
			Help:      "Number of files currently mapped.",
		}),
		mappedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mmap",
			Name:      "mapped_bytes",
			Help:      "Total size of currently mapped files.",
		}),
	}
	for _, c := range []prometheus.Collector{p.operations, p.duration, p.live, p.mappedBytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register mmap metrics: %w", err)
		}
	}
	return p, nil
}

func (p *PrometheusObserver) Observe(_ context.Context, ev api.Event) {
	p.operations.WithLabelValues(string(ev.Op), ev.Result()).Inc()
	p.duration.WithLabelValues(string(ev.Op)).Observe(ev.Duration.Seconds())

	switch ev.Op {
	case api.OpOpen:
		if ev.Err == nil {
			p.live.Inc()
			p.mappedBytes.Add(float64(ev.Size))
		}
	case api.OpClose:
		// the mapping is released even when close reports an error
		p.live.Dec()
		p.mappedBytes.Sub(float64(ev.Size))
	}
}

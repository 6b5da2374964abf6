// Package metrics exports provisioning counters to prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedguard/sgvpn/internal/lifecycle"
	"github.com/speedguard/sgvpn/internal/model"
)

const namespace = "sgvpn"

// Provisioning collects the outcome of start requests. It implements
// [lifecycle.Observer].
type Provisioning struct {
	attempts *prometheus.CounterVec
	failures *prometheus.CounterVec
	running  prometheus.Gauge
	duration prometheus.Histogram
}

var _ lifecycle.Observer = &Provisioning{}

// NewProvisioning creates the collectors and registers them with reg.
func NewProvisioning(reg prometheus.Registerer) (*Provisioning, error) {
	p := &Provisioning{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_attempts_total",
			Help:      "Tunnel start requests by disposition.",
		}, []string{"disposition"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_failures_total",
			Help:      "Failed tunnel start requests by failing step.",
		}, []string{"step"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tunnels_running",
			Help:      "Tunnels currently owned by an engine.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "start_duration_seconds",
			Help:      "Time spent provisioning a tunnel.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{p.attempts, p.failures, p.running, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}
	return p, nil
}

// Observe implements [lifecycle.Observer].
func (p *Provisioning) Observe(result *lifecycle.Result) {
	p.attempts.WithLabelValues(result.Disposition.String()).Inc()
	p.duration.Observe(result.Elapsed.Seconds())
	if result.Disposition == model.Sticky {
		p.running.Inc()
		return
	}
	p.failures.WithLabelValues(string(result.FailedStep)).Inc()
}

// EngineExited must be called when an engine gives the interface back.
func (p *Provisioning) EngineExited() {
	p.running.Dec()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Package telemetry exports solver timings as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Collector owns its registry so several runs in one process do not
// collide.
type Collector struct {
	reg     *prometheus.Registry
	phases  *prometheus.HistogramVec
	steps   prometheus.Counter
	simTime prometheus.Gauge
}

func New(run string) *Collector {
	labels := prometheus.Labels{"run": run}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "beatsim",
			Name:        "phase_duration_seconds",
			Help:        "Wall time of splitting sub-steps.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"phase"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "beatsim",
			Name:        "steps_total",
			Help:        "Completed timesteps.",
			ConstLabels: labels,
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "beatsim",
			Name:        "simulated_time",
			Help:        "End time of the last completed step.",
			ConstLabels: labels,
		}),
	}
	c.reg.MustRegister(c.phases, c.steps, c.simTime)
	return c
}

func (c *Collector) ObservePhase(phase string, d time.Duration) {
	c.phases.WithLabelValues(phase).Observe(d.Seconds())
}

func (c *Collector) ObserveStep(iv dynamo.Interval) {
	c.steps.Inc()
	c.simTime.Set(iv.T1)
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

package cache

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	errors      prometheus.Counter
	setFailures prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_cache_hits_total",
			Help: "Total artifact cache hits.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_cache_misses_total",
			Help: "Total artifact cache misses.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_cache_errors_total",
			Help: "Total cache reads degraded to a miss by a backend error.",
		}),
		setFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canvas_cache_set_failures_total",
			Help: "Total dropped best-effort cache writes.",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.hits, m.misses, m.errors, m.setFailures)
	}
	return m
}

func (m *Metrics) observeHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) observeMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) observeError() {
	if m != nil {
		m.errors.Inc()
	}
}

func (m *Metrics) observeSetFailure() {
	if m != nil {
		m.setFailures.Inc()
	}
}

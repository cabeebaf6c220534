package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	transformsTotal   *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		transformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_pipeline_transforms_total",
			Help: "Total transform executions by output format and status.",
		}, []string{"format", "status"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canvas_pipeline_transform_duration_seconds",
			Help:    "Wall time of a full transform stage sequence.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "status"}),
	}
	if registry != nil {
		registry.MustRegister(m.transformsTotal, m.transformDuration)
	}
	return m
}

func (m *Metrics) observeTransform(format, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transformsTotal.WithLabelValues(format, status).Inc()
	m.transformDuration.WithLabelValues(format, status).Observe(elapsed.Seconds())
}

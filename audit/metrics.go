package audit

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts audit entries as Prometheus metrics.
type Metrics struct {
	rejections *prometheus.CounterVec
	retries    *prometheus.HistogramVec
}

// NewMetrics creates the rejection counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "stage_rejections_total",
			Help:      "Rejected stage results by stage and reason.",
		}, []string{"stage", "reason"}),
		retries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "stage_rejection_attempts",
			Help:      "Attempt number that produced each rejected stage result.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.rejections, m.retries} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register audit metric: %w", err)
		}
	}
	return m, nil
}

// Record counts e.
func (m *Metrics) Record(_ context.Context, e Entry) error {
	m.rejections.WithLabelValues(string(e.Stage), string(e.Reason)).Inc()
	if e.RetryAttempt > 0 {
		m.retries.WithLabelValues(string(e.Stage)).Observe(float64(e.RetryAttempt))
	}
	return nil
}

// Rejections returns the counter for one stage and reason, for inspection.
func (m *Metrics) Rejections(stage, reason string) prometheus.Counter {
	return m.rejections.WithLabelValues(stage, reason)
}

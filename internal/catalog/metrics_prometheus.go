package catalog

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wildlife_catalog"

// PrometheusRecorder exports operation counters by outcome status, latency
// histograms and rule violation counters.
type PrometheusRecorder struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Violations *prometheus.CounterVec
}

// NewPrometheusRecorder registers the catalog metrics with registerer. A nil
// registerer selects prometheus.DefaultRegisterer.
func NewPrometheusRecorder(registerer prometheus.Registerer) *PrometheusRecorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &PrometheusRecorder{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Total number of catalog operations by outcome status (success or error kind)",
			},
			[]string{"operation", "status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Catalog operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		Violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rule_violations_total",
				Help:      "Rule violations reported by transactions, blocking or warning",
			},
			[]string{"rule", "severity"},
		),
	}
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, o Outcome) {
	r.Operations.WithLabelValues(o.Operation, o.Status()).Inc()
	r.Duration.WithLabelValues(o.Operation).Observe(o.Duration.Seconds())
	for _, v := range o.Violations {
		r.Violations.WithLabelValues(v.Rule, string(v.Severity)).Inc()
	}
}

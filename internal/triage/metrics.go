package triage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus metrics.
type Metrics struct {
	resolutions *prometheus.CounterVec
	confidence  prometheus.Histogram
	kbAdds      prometheus.Counter
	kbEntries   prometheus.GaugeFunc
}

// NewMetrics creates and registers engine metrics on reg.
// Pass nil to use the default registerer. countFn reports the current
// knowledge base size; pass nil to skip the gauge.
func NewMetrics(reg prometheus.Registerer, countFn func() float64) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triaged_resolutions_total",
				Help: "Total incidents resolved, labeled by outcome (resolved, escalated, error)",
			},
			[]string{"outcome"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triaged_resolution_confidence",
				Help:    "Confidence scores of generated resolutions",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		kbAdds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triaged_kb_adds_total",
				Help: "Total knowledge base entries added",
			},
		),
	}

	reg.MustRegister(m.resolutions, m.confidence, m.kbAdds)

	if countFn != nil {
		m.kbEntries = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "triaged_kb_entries",
				Help: "Current knowledge base size",
			},
			countFn,
		)
		reg.MustRegister(m.kbEntries)
	}

	return m
}

// observeResolution records one Resolve outcome.
func (m *Metrics) observeResolution(confidence float64, escalated bool) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if escalated {
		outcome = "escalated"
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.confidence.Observe(confidence)
}

// observeResolutionError records one failed Resolve.
func (m *Metrics) observeResolutionError() {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues("error").Inc()
}

// observeKBAdd records one AddKnowledge success.
func (m *Metrics) observeKBAdd() {
	if m == nil {
		return
	}
	m.kbAdds.Inc()
}

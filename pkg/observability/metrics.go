// Package observability provides metrics and tracing for the recognition pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "penf_ner"

// Metrics holds all Prometheus metrics for the recognition pipeline.
type Metrics struct {
	// Document metrics
	DocumentsTotal  *prometheus.CounterVec
	DocumentSeconds *prometheus.HistogramVec
	PassSeconds     *prometheus.HistogramVec

	// Annotation metrics
	MentionsTotal      *prometheus.CounterVec
	CoreferencesTotal  *prometheus.CounterVec
	UnresolvedMentions prometheus.Counter

	// Knowledge base metrics
	KBLookupsTotal *prometheus.CounterVec
	KBErrorsTotal  *prometheus.CounterVec
	KBLoadSeconds  *prometheus.HistogramVec
	KBEntities     prometheus.Gauge
}

// NewMetrics creates a new set of pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_total",
				Help:      "Total documents processed",
			},
			[]string{"mode", "status"},
		),
		DocumentSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "document_seconds",
				Help:      "End-to-end recognition latency per document",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"mode"},
		),
		PassSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "pass_seconds",
				Help:      "Latency of each pipeline pass",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"pass"},
		),

		MentionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "mentions_total",
				Help:      "Output annotations by kind",
			},
			[]string{"kind"},
		),
		CoreferencesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "coreferences_total",
				Help:      "Resolved coreferences by method",
			},
			[]string{"method"},
		),
		UnresolvedMentions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "unresolved_mentions_total",
				Help:      "Mentions left without a preferred sense",
			},
		),

		KBLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "kb_lookups_total",
				Help:      "Knowledge base lookups by operation",
			},
			[]string{"op"},
		),
		KBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "kb_errors_total",
				Help:      "Knowledge base lookup errors by operation",
			},
			[]string{"op"},
		),
		KBLoadSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "kb_load_seconds",
				Help:      "Time to load the knowledge base",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"backend"},
		),
		KBEntities: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "kb_entities",
				Help:      "Entities in the loaded knowledge base",
			},
		),
	}
}

// RecordDocument records a processed document.
func (m *Metrics) RecordDocument(mode, status string, seconds float64) {
	m.DocumentsTotal.WithLabelValues(mode, status).Inc()
	m.DocumentSeconds.WithLabelValues(mode).Observe(seconds)
}

// RecordPass records the latency of one pipeline pass.
func (m *Metrics) RecordPass(pass string, seconds float64) {
	m.PassSeconds.WithLabelValues(pass).Observe(seconds)
}

// RecordMention records an output annotation.
func (m *Metrics) RecordMention(kind string) {
	m.MentionsTotal.WithLabelValues(kind).Inc()
}

// RecordCoreference records a resolved coreference.
func (m *Metrics) RecordCoreference(method string) {
	m.CoreferencesTotal.WithLabelValues(method).Inc()
}

// RecordKBLookup records a knowledge base lookup.
func (m *Metrics) RecordKBLookup(op string) {
	m.KBLookupsTotal.WithLabelValues(op).Inc()
}

// RecordKBError records a failed knowledge base lookup.
func (m *Metrics) RecordKBError(op string) {
	m.KBErrorsTotal.WithLabelValues(op).Inc()
}

// RecordKBLoad records a knowledge base load.
func (m *Metrics) RecordKBLoad(backend string, seconds float64, entities int) {
	m.KBLoadSeconds.WithLabelValues(backend).Observe(seconds)
	m.KBEntities.Set(float64(entities))
}

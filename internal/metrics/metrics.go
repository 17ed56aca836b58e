package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the moderation pipeline's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ParsedTotal        *prometheus.CounterVec
	ModesTotal         *prometheus.CounterVec
	ActionsTotal       *prometheus.CounterVec
	ActionSeconds      *prometheus.HistogramVec
	DenialsTotal       *prometheus.CounterVec
	BatchesTotal       *prometheus.CounterVec
	ConfirmationsTotal *prometheus.CounterVec
	LLMRequestsTotal   *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,

		ParsedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_parsed_commands_total",
				Help: "Parsed messages by parser source",
			},
			[]string{"source"}, // model, pattern, combined, structured, default
		),

		ModesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_modes_total",
				Help: "Resolved response modes",
			},
			[]string{"mode"},
		),

		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_actions_total",
				Help: "Moderation attempts by action and result",
			},
			[]string{"action", "result"}, // result: success, error, timeout
		),

		ActionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlmod_action_duration_seconds",
				Help:    "Platform call latency per moderation attempt",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"action"},
		),

		DenialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_safety_denials_total",
				Help: "Safety denials by failed check",
			},
			[]string{"check"},
		),

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_batches_total",
				Help: "Batch operations by final status",
			},
			[]string{"status"},
		),

		ConfirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_confirmations_total",
				Help: "Confirmation requests by outcome",
			},
			[]string{"outcome"}, // requested, confirmed, cancelled, expired, rejected
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlmod_llm_requests_total",
				Help: "Command analysis model calls by result",
			},
			[]string{"result"}, // ok, error, invalid
		),
	}
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordParsed(source string) {
	if m == nil {
		return
	}
	m.ParsedTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordMode(mode string) {
	if m == nil {
		return
	}
	m.ModesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordAction(action, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, result).Inc()
	m.ActionSeconds.WithLabelValues(action).Observe(seconds)
}

func (m *Metrics) RecordDenial(check string) {
	if m == nil {
		return
	}
	m.DenialsTotal.WithLabelValues(check).Inc()
}

func (m *Metrics) RecordBatch(status string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLLM(result string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(result).Inc()
}

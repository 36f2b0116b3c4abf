// Package metrics registers the application's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the collectors. They are registered once per process.
//
// Metrics:
//   - katas_actions_total{action,result} - toggles, result is applied or removed
//   - katas_created_total{source} - katas stored, source is form or import
//   - katas_import_records_total{result} - bulk import records, ok or rejected
//   - katas_prompt_compilations_total - compiled prompts
//   - katas_http_request_duration_seconds{method,route,status}
type Metrics struct {
	ActionsTotal            *prometheus.CounterVec
	KatasCreatedTotal       *prometheus.CounterVec
	ImportRecordsTotal      *prometheus.CounterVec
	PromptCompilationsTotal prometheus.Counter
	RequestDuration         *prometheus.HistogramVec
}

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ActionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "katas_actions_total",
					Help: "Total number of upvote, save and complete toggles",
				},
				[]string{"action", "result"},
			),
			KatasCreatedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "katas_created_total",
					Help: "Total number of katas stored",
				},
				[]string{"source"}, // "form" or "import"
			),
			ImportRecordsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "katas_import_records_total",
					Help: "Total number of bulk import records processed",
				},
				[]string{"result"},
			),
			PromptCompilationsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "katas_prompt_compilations_total",
					Help: "Total number of compiled prompts",
				},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "katas_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route", "status"},
			),
		}
	})
	return globalMetrics
}

// RecordToggle counts one toggle.
func (m *Metrics) RecordToggle(action string, active bool) {
	result := "removed"
	if active {
		result = "applied"
	}
	m.ActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordCreated counts one stored kata.
func (m *Metrics) RecordCreated(source string) {
	m.KatasCreatedTotal.WithLabelValues(source).Inc()
}

// RecordImport counts bulk import outcomes.
func (m *Metrics) RecordImport(uploaded, rejected int) {
	m.ImportRecordsTotal.WithLabelValues("ok").Add(float64(uploaded))
	m.ImportRecordsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

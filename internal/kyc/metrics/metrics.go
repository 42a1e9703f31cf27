package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Submission outcomes: accepted, invalid, conflict, stale_replaced
	Submissions *prometheus.CounterVec

	// Persisted status transitions by target status
	Transitions *prometheus.CounterVec

	// Stage latency: upload, ai, credential, ledger
	StageDuration *prometheus.HistogramVec

	// Provider failures by provider and error category
	ProviderErrors *prometheus.CounterVec

	// Repair attempts by outcome
	Repairs *prometheus.CounterVec

	// Pipelines currently running in this process
	InFlight prometheus.Gauge
}

// New registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_submissions_total",
			Help: "KYC submissions by outcome",
		}, []string{"outcome"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_status_transitions_total",
			Help: "Persisted verification status transitions by target status",
		}, []string{"to"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycgate_kyc_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "result"}),

		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_provider_errors_total",
			Help: "Provider failures by provider and category",
		}, []string{"provider", "category"}),

		Repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_repairs_total",
			Help: "Admin repair attempts by outcome",
		}, []string{"outcome"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycgate_kyc_pipelines_in_flight",
			Help: "Verification pipelines currently running",
		}),
	}
}

func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// ObserveStage records how long a stage took and whether it succeeded.
func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementProviderError(provider, category string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider, category).Inc()
	}
}

func (m *Metrics) IncrementRepair(outcome string) {
	if m != nil {
		m.Repairs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PipelineStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) PipelineFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

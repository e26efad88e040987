package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for enforcement runs.
type Metrics struct {
	Runs              *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	AccountsProcessed prometheus.Counter
	Transitions       *prometheus.CounterVec
	AccountErrors     prometheus.Counter
}

// New creates a new Metrics instance with all enforcement metrics registered.
func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_enforcement_runs_total",
			Help: "Enforcement runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custos_enforcement_run_duration_seconds",
			Help:    "Wall time of one full enforcement sweep",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		AccountsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_enforcement_accounts_processed_total",
			Help: "Accounts evaluated across all runs",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_enforcement_transitions_total",
			Help: "Applied transitions by action kind",
		}, []string{"action"}),
		AccountErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_enforcement_account_errors_total",
			Help: "Accounts whose transition failed and was skipped",
		}),
	}
}

// ObserveRun records one completed or failed run.
func (m *Metrics) ObserveRun(trigger, outcome string, elapsed time.Duration) {
	if m != nil {
		m.Runs.WithLabelValues(trigger, outcome).Inc()
		m.RunDuration.Observe(elapsed.Seconds())
	}
}

// AddProcessed counts evaluated accounts.
func (m *Metrics) AddProcessed(n int) {
	if m != nil {
		m.AccountsProcessed.Add(float64(n))
	}
}

// IncTransition counts one applied action.
func (m *Metrics) IncTransition(action string) {
	if m != nil {
		m.Transitions.WithLabelValues(action).Inc()
	}
}

// IncAccountError counts one isolated per-account failure.
func (m *Metrics) IncAccountError() {
	if m != nil {
		m.AccountErrors.Inc()
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the flagging module.
type Metrics struct {
	FlagsCreated    *prometheus.CounterVec
	RulesTriggered  *prometheus.CounterVec
	FlagsResolved   *prometheus.CounterVec
	ReviewsSpawned  prometheus.Counter
}

// New creates a new Metrics instance with all flagging module metrics registered.
func New() *Metrics {
	return &Metrics{
		FlagsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_flags_created_total",
			Help: "Total flags created by highest severity",
		}, []string{"severity"}),
		RulesTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_rules_triggered_total",
			Help: "Total rule triggers by rule identifier",
		}, []string{"rule_id"}),
		FlagsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_flags_resolved_total",
			Help: "Total flag resolutions by action",
		}, []string{"action"}),
		ReviewsSpawned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_reviews_spawned_total",
			Help: "Total mandatory review items spawned",
		}),
	}
}

// IncFlagCreated counts a created flag.
func (m *Metrics) IncFlagCreated(severity string) {
	if m != nil {
		m.FlagsCreated.WithLabelValues(severity).Inc()
	}
}

// IncRuleTriggered counts one rule trigger.
func (m *Metrics) IncRuleTriggered(ruleID string) {
	if m != nil {
		m.RulesTriggered.WithLabelValues(ruleID).Inc()
	}
}

// IncFlagResolved counts a resolution.
func (m *Metrics) IncFlagResolved(action string) {
	if m != nil {
		m.FlagsResolved.WithLabelValues(action).Inc()
	}
}

// IncReviewSpawned counts a spawned review item.
func (m *Metrics) IncReviewSpawned() {
	if m != nil {
		m.ReviewsSpawned.Inc()
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the risk module.
type Metrics struct {
	ScoreDistribution prometheus.Histogram
	ScoresByLevel     *prometheus.CounterVec
	AdvisorySkipped   prometheus.Counter
	ScoreLatency      prometheus.Histogram
}

// New creates a new Metrics instance with all risk module metrics registered.
func New() *Metrics {
	return &Metrics{
		ScoreDistribution: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custos_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ScoresByLevel: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_risk_scores_total",
			Help: "Total scored transactions by risk level",
		}, []string{"level"}),
		AdvisorySkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custos_risk_advisory_skipped_total",
			Help: "Advisory enrichments skipped due to failure or timeout",
		}),
		ScoreLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custos_risk_score_duration_seconds",
			Help:    "Duration of full scoring including history load",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveScore records one scoring outcome.
func (m *Metrics) ObserveScore(score float64, level string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScoreDistribution.Observe(score)
	m.ScoresByLevel.WithLabelValues(level).Inc()
	m.ScoreLatency.Observe(d.Seconds())
}

// IncAdvisorySkipped counts a skipped enrichment.
func (m *Metrics) IncAdvisorySkipped() {
	if m != nil {
		m.AdvisorySkipped.Inc()
	}
}

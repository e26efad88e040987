package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trajectory estimator.
type Metrics struct {
	Predictions   *prometheus.CounterVec
	PredictedRisk prometheus.Histogram
}

// New creates a new Metrics instance with all prediction metrics registered.
func New() *Metrics {
	return &Metrics{
		Predictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_predictions_total",
			Help: "Trajectory predictions by band",
		}, []string{"trajectory"}),
		PredictedRisk: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custos_predicted_risk_30d",
			Help:    "Distribution of projected 30 day risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}

// ObservePrediction records one estimate.
func (m *Metrics) ObservePrediction(trajectory string, predicted float64) {
	if m != nil {
		m.Predictions.WithLabelValues(trajectory).Inc()
		m.PredictedRisk.Observe(predicted)
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level Prometheus metrics. Module-specific metrics
// live in each module's metrics subpackage.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers process-level metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custos_http_requests_total",
			Help: "Total HTTP requests by route and status class",
		}, []string{"route", "status"}),
	}
}

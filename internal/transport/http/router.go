// Package httptransport assembles the public HTTP surface. Handlers live
// with their features; this package only mounts them and applies the shared
// middleware chain.
package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	enforcementhandler "custos/internal/enforcement/handler"
	flagginghandler "custos/internal/flagging/handler"
	platformmetrics "custos/internal/platform/metrics"
	predictionhandler "custos/internal/prediction/handler"
	riskhandler "custos/internal/risk/handler"
	"custos/pkg/platform/httputil"
	"custos/pkg/platform/middleware/metadata"
	"custos/pkg/platform/middleware/requestid"
	"custos/pkg/platform/middleware/requesttime"
)

// Services collects the feature services exposed over HTTP.
type Services struct {
	Risk       riskhandler.Service
	Flagging   flagginghandler.Service
	Reinstater enforcementhandler.Service
	Scheduler  enforcementhandler.Runner
	Prediction predictionhandler.Service
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(s Services, logger *slog.Logger, m *platformmetrics.Metrics) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(instrument(m))

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	riskhandler.New(s.Risk, logger).Register(r)
	flagginghandler.New(s.Flagging, logger).Register(r)
	enforcementhandler.New(s.Reinstater, s.Scheduler, logger).Register(r)
	predictionhandler.New(s.Prediction, logger).Register(r)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument counts requests per route pattern and status class.
func instrument(m *platformmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%dxx", rec.status/100)).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

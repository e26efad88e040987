// Package requestid assigns a correlation ID to every request, honoring an
// inbound X-Request-ID when the caller already set one.
package requestid

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"custos/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware injects the request ID into the context and echoes it back on
// the response. When the caller sent none, the active trace ID is reused so
// logs and traces correlate; a fresh UUID is the last resort.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
				requestID = sc.TraceID().String()
			} else {
				requestID = uuid.NewString()
			}
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package testutil

import (
	"net/http"
	"time"

	"custos/pkg/requestcontext"
)

// WithRequestID stamps a request with a correlation ID the way the request-id
// middleware would, so handler tests can assert on log correlation.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request-scoped clock. Handlers that read
// requestcontext.Now become deterministic under test.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

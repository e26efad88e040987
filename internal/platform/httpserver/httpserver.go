// Package httpserver builds the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the server serving the compliance API. The generous write
// timeout leaves headroom for a manual enforcement run triggered over the
// API, which sweeps the whole ledger before responding.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}

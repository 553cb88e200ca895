package httpserver

import (
	"net/http"
	"time"
)

// New builds the bridge's HTTP server. The write timeout leaves headroom for
// handlers that wait on Issuer round-trips, which the per-route middleware
// caps at 30s.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

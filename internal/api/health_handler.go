package api

import (
	"context"
	"net/http"
)

// Pinger checks connectivity with a backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter reports the last known health of a dependency.
type HealthReporter interface {
	IsHealthy() bool
}

// HealthzHandler handles GET /healthz.
// Always returns 200 OK with {"status":"ok"}.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz.
// Checks result store connectivity and, when a reporter is given, the mail
// transport's health. Returns 200 if ready, 503 with Retry-After otherwise.
func ReadyzHandler(store Pinger, transport HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.Header().Set("Retry-After", "30")
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		if transport != nil && !transport.IsHealthy() {
			w.Header().Set("Retry-After", "30")
			respondError(w, http.StatusServiceUnavailable, "transport unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

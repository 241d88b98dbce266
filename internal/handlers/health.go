package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness: every dependency must answer within a second.
func Readyz(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.PingContext(ctx); err != nil {
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

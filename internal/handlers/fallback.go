package handlers

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/logging"
)

// NotFound answers unknown routes with the JSON error envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Recoverer turns a handler panic into a logged 500 with the JSON error
// envelope. http.ErrAbortHandler is re-raised for net/http to handle.
func Recoverer(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error(r.Context(), "handler panicked", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
				writeAppError(w, r, logger, apperr.Internal(fmt.Errorf("panic: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

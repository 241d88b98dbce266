package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/logging"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxBodyBytes = 1 << 20
)

// SuccessResponse is the envelope of every successful response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, SuccessResponse{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeAppError logs err with its kind and reason and writes a stable
// client message. Internal details never reach the client.
func writeAppError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}
	status := appErr.Status()

	args := []any{
		"kind", appErr.Kind.String(),
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err.Error(),
	}
	if appErr.Reason != apperr.ReasonNone {
		args = append(args, "reason", string(appErr.Reason))
	}
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", args...)
	} else {
		logger.Info(r.Context(), "request rejected", args...)
	}

	resp := ErrorResponse{Message: clientMessage(appErr), Errors: appErr.Fields}
	switch appErr.Kind {
	case apperr.KindUnauthenticated, apperr.KindForbidden:
		resp.Reason = string(appErr.Reason)
	}
	writeJSON(w, status, resp)
}

func clientMessage(err *apperr.Error) string {
	switch err.Kind {
	case apperr.KindInternal:
		return "internal server error"
	case apperr.KindServiceUnavailable:
		return "service unavailable"
	case apperr.KindUnauthenticated:
		return "unauthorized"
	case apperr.KindInvalidCredentials:
		return "invalid email or password"
	}
	if err.Message != "" {
		return err.Message
	}
	return err.Kind.String()
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidInput("request body is required", nil)
		}
		return apperr.InvalidInput("invalid request", nil)
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperr.InvalidInput("invalid page", map[string]string{"page": "must be a positive integer"})
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, apperr.InvalidInput("invalid limit", map[string]string{"limit": "must be a positive integer"})
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, apperr.InvalidInput("invalid user id", map[string]string{"userID": "must be a positive integer"})
	}
	return id, nil
}

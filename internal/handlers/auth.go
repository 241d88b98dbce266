package handlers

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/types"
)

// LoginLimiter bounds login attempts. *cache.LoginLimiter satisfies it.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// TokenRevoker revokes a token before its expiry. *cache.RevocationStore
// satisfies it.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthHandler provides the account endpoints under /auth.
type AuthHandler struct {
	accounts *services.AccountService
	limiter  LoginLimiter
	revoker  TokenRevoker
	logger   logging.Logger
}

// AuthOptions carries the optional collaborators of AuthHandler.
type AuthOptions struct {
	Limiter LoginLimiter
	Revoker TokenRevoker
	Logger  logging.Logger
}

func NewAuthHandler(accounts *services.AccountService, opts AuthOptions) *AuthHandler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthHandler{
		accounts: accounts,
		limiter:  opts.Limiter,
		revoker:  opts.Revoker,
		logger:   logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, accounts *services.AccountService, guard *Guard, opts AuthOptions) {
	handler := NewAuthHandler(accounts, opts)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAuth)
		r.Get("/profile", handler.Profile)
		r.Put("/profile", handler.UpdateProfile)
	})
	r.With(guard.RequireSession).Post("/logout", handler.Logout)
}

// AuthResponse is the data of register and login responses.
type AuthResponse struct {
	User      types.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User types.User `json:"user"`
}

// Register creates a mentee account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	session, err := h.accounts.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, AuthResponse{
		User:      session.User,
		Token:     session.Token.Value,
		ExpiresAt: session.Token.ExpiresAt,
	}, "user registered")
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	limitKey := clientIP(r) + "|" + req.Email
	if h.limiter != nil {
		ok, retryAfter, err := h.limiter.Allow(r.Context(), limitKey)
		if err != nil {
			h.logger.Warn(r.Context(), "login rate limiter unavailable", "error", err)
		} else if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeAppError(w, r, h.logger, apperr.TooManyRequests("too many login attempts"))
			return
		}
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Reset(r.Context(), limitKey); err != nil {
			h.logger.Warn(r.Context(), "failed to reset login attempts", "error", err)
		}
	}

	writeData(w, http.StatusOK, AuthResponse{
		User:      session.User,
		Token:     session.Token.Value,
		ExpiresAt: session.Token.ExpiresAt,
	}, "login successful")
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeAppError(w, r, h.logger, apperr.Unauthenticated(apperr.ReasonNoToken, nil))
		return
	}

	user, err := h.accounts.Profile(r.Context(), identity.ID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, UserResponse{User: user}, "")
}

// UpdateProfile changes the authenticated user's own profile fields.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeAppError(w, r, h.logger, apperr.Unauthenticated(apperr.ReasonNoToken, nil))
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), identity.ID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Bio:       req.Bio,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, UserResponse{User: user}, "profile updated")
}

// Logout revokes the presented token when a revocation list is configured.
// Otherwise the client is expected to discard the token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeAppError(w, r, h.logger, apperr.Unauthenticated(apperr.ReasonNoToken, nil))
		return
	}

	revoked := false
	if h.revoker != nil && claims.TokenID != "" {
		if err := h.revoker.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
			writeAppError(w, r, h.logger, apperr.Unavailable(fmt.Errorf("revoke token: %w", err)))
			return
		}
		revoked = true
	}
	writeData(w, http.StatusOK, map[string]bool{"revoked": revoked}, "logged out")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

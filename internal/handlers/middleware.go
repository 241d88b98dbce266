package handlers

import (
	"context"
	"net/http"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/types"
)

// Authenticator resolves an Authorization header to an identity.
// *auth.SessionValidator satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Identity, auth.Claims, error)
}

// RejectionRecorder counts rejected requests by reason.
type RejectionRecorder interface {
	ObserveRejection(reason string)
}

// Guard holds the session middleware and the role gate.
type Guard struct {
	sessions Authenticator
	logger   logging.Logger
	recorder RejectionRecorder
}

func NewGuard(sessions Authenticator, logger logging.Logger, recorder RejectionRecorder) *Guard {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Guard{sessions: sessions, logger: logger, recorder: recorder}
}

// RequireAuth authenticates the request and attaches the identity, read
// fresh from the store, to the request context.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, claims, err := g.sessions.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity, claims)))
	})
}

// RequireSession is RequireAuth that also admits accounts that are not
// active. It guards logout so a suspended user can still revoke a token.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, claims, err := g.sessions.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil && apperr.ReasonOf(err) != apperr.ReasonAccountDisabled {
			g.reject(w, r, err)
			return
		}
		if identity.ID < 1 {
			g.reject(w, r, apperr.Unauthenticated(apperr.ReasonSubjectNotFound, nil))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity, claims)))
	})
}

// RequireRole admits only identities holding one of roles. It must run
// after RequireAuth.
func (g *Guard) RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				g.reject(w, r, apperr.Unauthenticated(apperr.ReasonNoToken, nil))
				return
			}
			if err := auth.Allow(identity, roles...); err != nil {
				g.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole(types.RoleAdmin).
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireRole(types.RoleAdmin)(next)
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, err error) {
	if g.recorder != nil {
		reason := string(apperr.ReasonOf(err))
		if reason == "" {
			reason = apperr.KindOf(err).String()
		}
		g.recorder.ObserveRejection(reason)
	}
	writeAppError(w, r, g.logger, err)
}

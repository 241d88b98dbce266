package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/store"
	"github.com/mentorlink/apiserver/types"
)

// UserLookup loads the current state of a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// RevocationList reports whether a token id was revoked before expiry.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionValidator turns an Authorization header into an Identity.
type SessionValidator struct {
	verifier *TokenVerifier
	users    UserLookup
	revoked  RevocationList
}

// NewSessionValidator builds a validator. revoked may be nil, in which case
// logout is handled by the client discarding its token.
func NewSessionValidator(verifier *TokenVerifier, users UserLookup, revoked RevocationList) *SessionValidator {
	return &SessionValidator{verifier: verifier, users: users, revoked: revoked}
}

// Authenticate validates header and loads the subject fresh from the store.
// Accounts that are not active are rejected with Forbidden/AccountDisabled;
// the identity and claims are still returned alongside that error.
func (v *SessionValidator) Authenticate(ctx context.Context, header string) (Identity, Claims, error) {
	raw, err := BearerToken(header)
	if err != nil {
		return Identity{}, Claims{}, err
	}

	claims, err := v.verifier.Verify(raw)
	if err != nil {
		return Identity{}, Claims{}, err
	}

	if v.revoked != nil && claims.TokenID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return Identity{}, Claims{}, apperr.Unavailable(err)
		}
		if revoked {
			return Identity{}, Claims{}, apperr.Unauthenticated(apperr.ReasonTokenRevoked, nil)
		}
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return Identity{}, Claims{}, apperr.FromStore(err, apperr.Unauthenticated(apperr.ReasonSubjectNotFound, nil))
	}

	identity := IdentityOf(user)
	if identity.Status != types.StatusActive {
		return identity, claims, apperr.Forbidden(apperr.ReasonAccountDisabled, "account is not active")
	}
	return identity, claims, nil
}

// BearerToken extracts the token of a "Bearer <token>" header.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.Unauthenticated(apperr.ReasonNoToken, nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.Unauthenticated(apperr.ReasonMalformedHeader, errors.New("invalid authorization"))
	}
	token := strings.TrimSpace(parts[1])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", apperr.Unauthenticated(apperr.ReasonMalformedHeader, errors.New("invalid authorization"))
	}
	return token, nil
}

var _ UserLookup = (*store.UserRepository)(nil)

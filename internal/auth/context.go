package auth

import (
	"context"

	"github.com/mentorlink/apiserver/types"
)

// Identity is the authenticated caller, loaded fresh from the store on
// every request.
type Identity struct {
	ID        int          `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      types.Role   `json:"role"`
	Status    types.Status `json:"status"`
}

// IdentityOf builds the identity of user.
func IdentityOf(user types.User) Identity {
	return Identity{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role.Normalize(),
		Status:    user.Status,
	}
}

type contextKey int

const (
	identityKey contextKey = iota
	claimsKey
)

// WithIdentity attaches the identity and the token claims it was
// authenticated with.
func WithIdentity(ctx context.Context, identity Identity, claims Claims) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	return context.WithValue(ctx, claimsKey, claims)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.ID > 0
}

// ClaimsFromContext returns the token claims attached by WithIdentity.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

package auth

import (
	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/types"
)

// Allow reports whether identity holds one of roles. An empty roles list
// admits any authenticated identity.
func Allow(identity Identity, roles ...types.Role) error {
	if identity.ID < 1 {
		return apperr.Unauthenticated(apperr.ReasonNoToken, nil)
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if identity.Role.Is(role) {
			return nil
		}
	}
	return apperr.Forbidden(apperr.ReasonInsufficientRole, "insufficient permissions")
}

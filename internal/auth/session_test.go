package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/store"
	"github.com/mentorlink/apiserver/types"
)

type stubUsers struct {
	users map[int]types.User
	err   error
}

func (s *stubUsers) GetByID(_ context.Context, id int) (types.User, error) {
	if s.err != nil {
		return types.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], s.err
}

func newTestSession(t *testing.T, users *stubUsers, revoked RevocationList) (*SessionValidator, *TokenIssuer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, verifier := newTokenPair(t, clock)
	return NewSessionValidator(verifier, users, revoked), issuer, clock
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		reason apperr.Reason
	}{
		{header: "", reason: apperr.ReasonNoToken},
		{header: "   ", reason: apperr.ReasonNoToken},
		{header: "Bearer", reason: apperr.ReasonMalformedHeader},
		{header: "Bearer ", reason: apperr.ReasonMalformedHeader},
		{header: "Basic abc", reason: apperr.ReasonMalformedHeader},
		{header: "abc.def.ghi", reason: apperr.ReasonMalformedHeader},
		{header: "Bearer a b", reason: apperr.ReasonMalformedHeader},
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{header: "bearer abc.def.ghi", want: "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.header), func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.reason != apperr.ReasonNone {
				require.Error(t, err)
				assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
				assert.Equal(t, tt.reason, apperr.ReasonOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionValidator_Authenticate(t *testing.T) {
	users := &stubUsers{users: map[int]types.User{
		1: {ID: 1, Email: "ana@example.com", FirstName: "Ana", LastName: "Silva", Role: types.RoleMentee, Status: types.StatusActive},
	}}
	session, issuer, _ := newTestSession(t, users, nil)

	token, err := issuer.Issue(1)
	require.NoError(t, err)

	identity, claims, err := session.Authenticate(context.Background(), "Bearer "+token.Value)
	require.NoError(t, err)
	assert.Equal(t, 1, identity.ID)
	assert.Equal(t, types.RoleMentee, identity.Role)
	assert.Equal(t, token.ID, claims.TokenID)
}

func TestSessionValidator_RoleIsReadFresh(t *testing.T) {
	users := &stubUsers{users: map[int]types.User{
		1: {ID: 1, Email: "ana@example.com", Role: types.RoleMentee, Status: types.StatusActive},
	}}
	session, issuer, _ := newTestSession(t, users, nil)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	identity, _, err := session.Authenticate(context.Background(), "Bearer "+token.Value)
	require.NoError(t, err)
	assert.Equal(t, types.RoleMentee, identity.Role)

	promoted := users.users[1]
	promoted.Role = types.RoleMentor
	users.users[1] = promoted

	identity, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	require.NoError(t, err)
	assert.Equal(t, types.RoleMentor, identity.Role)
}

func TestSessionValidator_SubjectNotFound(t *testing.T) {
	session, issuer, _ := newTestSession(t, &stubUsers{users: map[int]types.User{}}, nil)
	token, err := issuer.Issue(9)
	require.NoError(t, err)

	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, apperr.ReasonSubjectNotFound, apperr.ReasonOf(err))
}

func TestSessionValidator_StoreUnavailable(t *testing.T) {
	users := &stubUsers{err: fmt.Errorf("%w: timeout", store.ErrUnavailable)}
	session, issuer, _ := newTestSession(t, users, nil)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.KindServiceUnavailable, apperr.KindOf(err))
}

func TestSessionValidator_ExpiredToken(t *testing.T) {
	users := &stubUsers{users: map[int]types.User{1: {ID: 1, Status: types.StatusActive}}}
	session, issuer, clock := newTestSession(t, users, nil)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	clock.Advance(DefaultTokenTTL + time.Second)
	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.ReasonTokenExpired, apperr.ReasonOf(err))
}

func TestSessionValidator_DisabledAccount(t *testing.T) {
	users := &stubUsers{users: map[int]types.User{
		1: {ID: 1, Role: types.RoleMentor, Status: types.StatusSuspended},
	}}
	session, issuer, _ := newTestSession(t, users, nil)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, apperr.ReasonAccountDisabled, apperr.ReasonOf(err))
}

func TestSessionValidator_RevokedToken(t *testing.T) {
	users := &stubUsers{users: map[int]types.User{1: {ID: 1, Status: types.StatusActive}}}
	revocations := &stubRevocations{revoked: map[string]bool{}}
	session, issuer, _ := newTestSession(t, users, revocations)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	require.NoError(t, err)

	revocations.revoked[token.ID] = true
	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.ReasonTokenRevoked, apperr.ReasonOf(err))

	revocations.err = errors.New("redis down")
	_, _, err = session.Authenticate(context.Background(), "Bearer "+token.Value)
	assert.Equal(t, apperr.KindServiceUnavailable, apperr.KindOf(err))
}

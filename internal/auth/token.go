package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mentorlink/apiserver/internal/apperr"
)

// MinSecretLength is the shortest accepted HS256 signing secret, in bytes.
const MinSecretLength = 32

// DefaultTokenTTL is the lifetime of a session token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrWeakSecret is returned when the signing secret is missing or too short.
var ErrWeakSecret = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)

// TokenConfig configures token issuance and verification.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func (c TokenConfig) normalized() (TokenConfig, error) {
	if len(c.Secret) < MinSecretLength {
		return c, ErrWeakSecret
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

// Token is a signed session token.
type Token struct {
	Value     string    `json:"token"`
	ID        string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are the verified contents of a session token. Tokens carry the
// user id only; role and status are always read from the store.
type Claims struct {
	UserID    int
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs session tokens.
type TokenIssuer struct {
	cfg TokenConfig
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{cfg: cfg}, nil
}

// Issue signs a token for userID.
func (i *TokenIssuer) Issue(userID int) (Token, error) {
	if userID < 1 {
		return Token{}, fmt.Errorf("invalid user id %d", userID)
	}
	now := i.cfg.Now().UTC().Truncate(time.Second)
	expires := now.Add(i.cfg.TTL)
	id := uuid.NewString()

	claims := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    i.cfg.Issuer,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ID: id, IssuedAt: now, ExpiresAt: expires}, nil
}

// TokenVerifier checks signature and expiry of session tokens.
type TokenVerifier struct {
	cfg    TokenConfig
	parser *jwt.Parser
}

func NewTokenVerifier(cfg TokenConfig) (*TokenVerifier, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &TokenVerifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses raw and returns its claims. Failures are Unauthenticated
// with reason TokenExpired or TokenInvalid.
func (v *TokenVerifier) Verify(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := v.parser.ParseWithClaims(raw, &registered, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.Unauthenticated(apperr.ReasonTokenExpired, err)
		}
		return Claims{}, apperr.Unauthenticated(apperr.ReasonTokenInvalid, err)
	}
	if !token.Valid {
		return Claims{}, apperr.Unauthenticated(apperr.ReasonTokenInvalid, errors.New("invalid token"))
	}

	userID, err := strconv.Atoi(strings.TrimSpace(registered.Subject))
	if err != nil || userID < 1 {
		return Claims{}, apperr.Unauthenticated(apperr.ReasonTokenInvalid, errors.New("invalid subject"))
	}

	claims := Claims{UserID: userID, TokenID: registered.ID}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

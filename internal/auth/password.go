package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/mentorlink/apiserver/internal/apperr"
)

// DefaultBcryptCost matches the cost used for existing password hashes.
const DefaultBcryptCost = 10

// Hasher hashes and verifies passwords with bcrypt. Concurrent hashing is
// bounded so a burst of logins cannot monopolize every CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher returns a Hasher with the given bcrypt cost. A cost of zero
// selects DefaultBcryptCost and a non-positive maxConcurrent selects
// 2*GOMAXPROCS.
func NewHasher(cost int, maxConcurrent int64) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = int64(2 * runtime.GOMAXPROCS(0))
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(maxConcurrent)}, nil
}

// Hash returns the bcrypt hash of plaintext. Each call uses a fresh salt.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperr.InvalidInput("password is required", map[string]string{"password": "cannot be blank"})
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.InvalidInput("password is too long", map[string]string{"password": "must be at most 72 bytes"})
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Compare is Verify under the hashing concurrency limit. Only context
// errors are returned.
func (h *Hasher) Compare(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	return h.Verify(plaintext, hash), nil
}

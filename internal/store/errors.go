package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when the unique email index rejects a write.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrUnavailable is returned when the database cannot answer in time.
var ErrUnavailable = errors.New("store unavailable")

const pqUniqueViolation = "23505"

// classify wraps driver failures into the package sentinels. ctx is the
// query's bounded context; its expiry means the store timed out.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, pqErr.Constraint)
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("db error: %w", err)
}

package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/internal/store"
)

// Transactor runs fn with repositories bound to a single transaction. The
// transaction commits only when fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, users UserRepository, profiles MentorProfileRepository) error) error
}

// SQLTransactor is the Postgres Transactor.
type SQLTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLTransactor(conn *sql.DB, queryTimeout time.Duration) *SQLTransactor {
	return &SQLTransactor{db: conn, timeout: queryTimeout}
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, users UserRepository, profiles MentorProfileRepository) error) error {
	return db.WithTx(ctx, t.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, store.NewUserRepository(tx, t.timeout), store.NewMentorProfileRepository(tx, t.timeout))
	})
}

var (
	_ UserRepository          = (*store.UserRepository)(nil)
	_ MentorProfileRepository = (*store.MentorProfileRepository)(nil)
)

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/apiserver/types"
)

var userRowColumns = []string{
	"id", "first_name", "last_name", "email", "role", "status", "phone", "bio",
	"email_verified", "password_hash", "last_login", "created_at", "updated_at",
}

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewUserRepository(conn, time.Second), mock
}

func userRow(id int, email string, role any, status string) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(userRowColumns).
		AddRow(id, "Ana", "Silva", email, role, status, "", "", false, "$2a$10$hash", nil, now, now)
}

func TestUserRepository_GetByEmail_LowercasesLookup(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE LOWER\(email\) = \$1`).
		WithArgs("ana@example.com").
		WillReturnRows(userRow(7, "ana@example.com", "mentee", "active"))

	user, err := repo.GetByEmail(context.Background(), "  Ana@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, types.RoleMentee, user.Role)
	assert.Equal(t, types.StatusActive, user.Status)
	assert.Equal(t, "$2a$10$hash", user.PasswordHash)
	assert.Nil(t, user.LastLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1`).
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID_NormalizesStoredRole(t *testing.T) {
	tests := []struct {
		name   string
		stored any
		want   types.Role
	}{
		{name: "null role", stored: nil, want: types.RoleMentee},
		{name: "empty role", stored: "", want: types.RoleMentee},
		{name: "legacy administrator", stored: "Administrator", want: types.RoleAdmin},
		{name: "mentor", stored: "mentor", want: types.RoleMentor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUserRepoWithMock(t)
			mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1`).
				WithArgs(1).
				WillReturnRows(userRow(1, "a@example.com", tt.stored, "active"))

			user, err := repo.GetByID(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Role)
		})
	}
}

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT INTO users \(first_name, last_name, email, password_hash, role, status, .*\).*RETURNING id`).
		WithArgs("Ana", "Silva", "ana@example.com", "hash", "mentee", "active", "", "", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	user, err := repo.Create(context.Background(), types.User{
		FirstName:    "Ana",
		LastName:     "Silva",
		Email:        "Ana@Example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, types.RoleMentee, user.Role)
	assert.Equal(t, types.StatusActive, user.Status)
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_lower_key"})

	_, err := repo.Create(context.Background(), types.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Email: "ana@example.com"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestUserRepository_ConnectionRefusedIsUnavailable(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	mock.ExpectQuery(`(?s)SELECT EXISTS`).WillReturnError(refused)

	_, err := repo.ExistsByEmail(context.Background(), "ana@example.com")
	assert.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	expired, cancel := context.WithCancel(context.Background())
	cancel()

	tests := map[string]struct {
		ctx    context.Context
		err    error
		target error
	}{
		"bad connection":     {ctx: context.Background(), err: driver.ErrBadConn, target: ErrUnavailable},
		"wrapped bad conn":   {ctx: context.Background(), err: fmt.Errorf("query: %w", driver.ErrBadConn), target: ErrUnavailable},
		"connection refused": {ctx: context.Background(), err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, target: ErrUnavailable},
		"deadline":           {ctx: context.Background(), err: context.DeadlineExceeded, target: ErrUnavailable},
		"context expired":    {ctx: expired, err: errors.New("canceling statement"), target: ErrUnavailable},
		"unique violation":   {ctx: context.Background(), err: &pq.Error{Code: "23505", Constraint: "users_email_key"}, target: ErrDuplicateEmail},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.ctx, tt.err), tt.target)
		})
	}

	plain := classify(context.Background(), errors.New("syntax error"))
	assert.NotErrorIs(t, plain, ErrUnavailable)
	assert.NotErrorIs(t, plain, ErrDuplicateEmail)
	assert.Nil(t, classify(context.Background(), nil))
}

func TestUserRepository_QueryTimeoutIsUnavailable(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn, 10*time.Millisecond)

	mock.ExpectQuery(`(?s)SELECT EXISTS`).
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = repo.ExistsByEmail(context.Background(), "ana@example.com")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT EXISTS \(SELECT 1 FROM users WHERE LOWER\(email\) = \$1\)`).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_Update_AppliesPatch(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	role := types.Role("administrator")
	first := "Ana Maria"
	mock.ExpectQuery(`(?s)UPDATE users SET first_name = \$1, role = \$2, updated_at = \$3 WHERE id = \$4 RETURNING`).
		WithArgs("Ana Maria", "admin", sqlmock.AnyArg(), 5).
		WillReturnRows(userRow(5, "ana@example.com", "admin", "active"))

	user, err := repo.Update(context.Background(), 5, types.UserPatch{FirstName: &first, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	status := types.StatusSuspended
	mock.ExpectQuery(`(?s)UPDATE users SET status = \$1`).
		WithArgs("suspended", sqlmock.AnyArg(), 99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), 99, types.UserPatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_List_FiltersAndPaginates(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT COUNT\(1\) FROM users WHERE \(first_name ILIKE \$1 .*\) AND role = \$2 AND status = \$3`).
		WithArgs("%ana%", "mentor", "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE .* ORDER BY created_at DESC, id DESC OFFSET \$4 LIMIT \$5`).
		WithArgs("%ana%", "mentor", "active", 2, 2).
		WillReturnRows(userRow(3, "ana3@example.com", "mentor", "active"))

	users, total, err := repo.List(context.Background(), types.UserFilter{
		Search: " ana ",
		Role:   types.RoleMentor,
		Status: types.StatusActive,
		Offset: 2,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, users, 1)
	assert.Equal(t, 3, users[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_EscapesWildcards(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT COUNT\(1\) FROM users WHERE \(first_name ILIKE \$1 ESCAPE '\\' .*\)`).
		WithArgs(`%50\%\_off\\%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE .* OFFSET \$2 LIMIT \$3`).
		WithArgs(`%50\%\_off\\%`, 0, 20).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, total, err := repo.List(context.Background(), types.UserFilter{Search: `50%_off\`})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET last_login = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET last_login = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.TouchLastLogin(context.Background(), 4))
	assert.ErrorIs(t, repo.TouchLastLogin(context.Background(), 5), ErrNotFound)
}

func TestUserRepository_RepairRoles(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users\s+SET role = 'mentee'.*WHERE role IS NULL OR TRIM\(role\) = ''`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repaired, err := repo.RepairRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), repaired)
}

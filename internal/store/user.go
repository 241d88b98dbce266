package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/types"
)

const defaultQueryTimeout = 5 * time.Second

const userColumns = `id, first_name, last_name, email, role, status,
		COALESCE(phone, ''), COALESCE(bio, ''), email_verified, password_hash,
		last_login, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db      db.DBTX
	timeout time.Duration
}

// NewUserRepository binds the repository to a pool or a transaction.
// Every query is bounded by timeout.
func NewUserRepository(conn db.DBTX, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &UserRepository{db: conn, timeout: timeout}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, classify(ctx, err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, classify(ctx, err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, normalizeEmail(email)).Scan(&exists); err != nil {
		return false, classify(ctx, err)
	}
	return exists, nil
}

// Create inserts a user. The unique index on LOWER(email) makes concurrent
// registrations of the same address fail with ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	user.Email = normalizeEmail(user.Email)
	user.Role = user.Role.Normalize()
	if !user.Status.IsValid() {
		user.Status = types.StatusActive
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (first_name, last_name, email, password_hash, role, status, phone, bio, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.Phone,
		user.Bio,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, classify(ctx, err)
	}
	return user, nil
}

// Update applies patch to the user and bumps updated_at.
func (r *UserRepository) Update(ctx context.Context, id int, patch types.UserPatch) (types.User, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Phone != nil {
		add("phone", nullIfEmpty(*patch.Phone))
	}
	if patch.Bio != nil {
		add("bio", nullIfEmpty(*patch.Bio))
	}
	if patch.Role != nil {
		add("role", string(patch.Role.Normalize()))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, classify(ctx, err)
	}
	return user, nil
}

// List returns one page of users matching filter and the total match count.
func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			`(first_name ILIKE $%[1]d ESCAPE '\' OR last_name ILIKE $%[1]d ESCAPE '\' OR email ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role.Normalize()))
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(ctx, err)
	}

	listArgs := append(args, filter.Offset, filter.Limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id DESC OFFSET $%d LIMIT $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, classify(ctx, err)
	}
	defer rows.Close()

	users := make([]types.User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, classify(ctx, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(ctx, err)
	}
	return users, total, nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `UPDATE users SET last_login = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return classify(ctx, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(ctx, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RepairRoles coerces missing roles to mentee and returns the number of
// rows repaired.
func (r *UserRepository) RepairRoles(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE users
		SET role = 'mentee', updated_at = $1
		WHERE role IS NULL OR TRIM(role) = ''`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, classify(ctx, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, classify(ctx, err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user      types.User
		role      sql.NullString
		status    string
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&role,
		&status,
		&user.Phone,
		&user.Bio,
		&user.EmailVerified,
		&user.PasswordHash,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	user.Role = types.Role(role.String).Normalize()
	user.Status = types.Status(status)
	if !user.Status.IsValid() {
		user.Status = types.StatusInactive
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// Package postgres provides the PostgreSQL-backed user directory backend.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/credgate/internal/core/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

const schema = `create table if not exists credgate_users (
	id            text primary key,
	username      text not null unique,
	display_name  text not null default '',
	password_hash text not null,
	role          text not null,
	status        text not null,
	allowlist     text[],
	failed_logins int not null default 0,
	locked_until  bigint not null default 0,
	last_login    bigint not null default 0,
	last_login_ip text not null default '',
	created_at    bigint not null,
	updated_at    bigint not null,
	created_by    text not null default '',
	version       bigint not null default 1
)`

const userColumns = `id, username, display_name, password_hash, role, status,
	allowlist, failed_logins, locked_until, last_login, last_login_ip,
	created_at, updated_at, created_by, version`

// Store provides PostgreSQL-backed storage for directory accounts.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to the database at dsn and ensures the users table
// exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("directory: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("directory: ensure schema: %w", err)
	}

	s.pool = pool
	s.logger.Info("postgres directory ready")
	return s, nil
}

// ============================================================================
// UserRepository implementation
// ============================================================================

// Create inserts a new account.
func (s *Store) Create(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx, `insert into credgate_users (`+userColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID, user.Username, user.DisplayName, user.PasswordHash,
		string(user.Role), string(user.Status), user.Allowlist,
		user.FailedLogins, user.LockedUntil, user.LastLogin, user.LastLoginIP,
		user.CreatedAt, user.UpdatedAt, user.CreatedBy, user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserConflict
		}
		return fmt.Errorf("directory: insert user: %w", err)
	}
	return nil
}

// Get retrieves an account by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`select `+userColumns+` from credgate_users where id = $1`, id)
	return scanUser(row)
}

// GetByUsername retrieves an account by its lowercase login name.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`select `+userColumns+` from credgate_users where username = $1`, username)
	return scanUser(row)
}

// Update updates an existing account.
func (s *Store) Update(ctx context.Context, user *domain.User) error {
	tag, err := s.pool.Exec(ctx, `update credgate_users set
		username = $2, display_name = $3, password_hash = $4, role = $5,
		status = $6, allowlist = $7, failed_logins = $8, locked_until = $9,
		last_login = $10, last_login_ip = $11, created_at = $12,
		updated_at = $13, created_by = $14, version = $15
		where id = $1`,
		user.ID, user.Username, user.DisplayName, user.PasswordHash,
		string(user.Role), string(user.Status), user.Allowlist,
		user.FailedLogins, user.LockedUntil, user.LastLogin, user.LastLoginIP,
		user.CreatedAt, user.UpdatedAt, user.CreatedBy, user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserConflict
		}
		return fmt.Errorf("directory: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List retrieves all accounts.
func (s *Store) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`select `+userColumns+` from credgate_users order by username`)
	if err != nil {
		return nil, fmt.Errorf("directory: list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: list users: %w", err)
	}
	return users, nil
}

// Count returns the number of accounts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `select count(*) from credgate_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("directory: count users: %w", err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ============================================================================
// Row mapping
// ============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user   domain.User
		role   string
		status string
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash,
		&role, &status, &user.Allowlist, &user.FailedLogins,
		&user.LockedUntil, &user.LastLogin, &user.LastLoginIP,
		&user.CreatedAt, &user.UpdatedAt, &user.CreatedBy, &user.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("directory: scan user: %w", err)
	}
	user.Role = domain.Role(role)
	user.Status = domain.UserStatus(status)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

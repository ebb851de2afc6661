package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/announcer/pkg/domain"
)

// UserRepository handles user-related database operations
type UserRepository struct {
	db *sqlx.DB
}

// userRow is the users table row
type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user, taken username gives domain.ErrDuplicateUsername.
// Lock errors are retried with backoff.
func (r *UserRepository) CreateUser(ctx context.Context, user domain.UserRecord) error {
	row := userRow{ID: user.ID, Username: user.Username, PasswordHash: user.PasswordHash, CreatedAt: user.CreatedAt.UTC()}
	query := `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (:id, :username, :password_hash, :created_at)
	`

	var insertErr error
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		_, insertErr = r.db.NamedExecContext(ctx, query, row)
		if isLockError(insertErr) {
			return insertErr // retry
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	switch {
	case isUniqueError(insertErr):
		return fmt.Errorf("create user %q: %w", user.Username, domain.ErrDuplicateUsername)
	case insertErr != nil:
		return fmt.Errorf("create user: %w", insertErr)
	}
	return nil
}

// GetUserByUsername retrieves a user, unknown username gives domain.ErrUserNotFound
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (domain.UserRecord, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserRecord{}, fmt.Errorf("get user %q: %w", username, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return domain.UserRecord{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt}, nil
}

// CountUsers returns number of registered users
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

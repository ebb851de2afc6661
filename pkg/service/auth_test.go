package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/repository"
	"github.com/umputun/announcer/pkg/service/mocks"
)

func TestAuthService_WithRepository(t *testing.T) {
	repos, err := repository.NewRepositories(context.Background(), repository.Config{DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer repos.Close()

	svc := NewAuthService(repos.User, bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, "trader", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "trader", user.Username)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = svc.Register(ctx, "trader", "other")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	logged, err := svc.Login(ctx, "trader", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, err = svc.Login(ctx, "trader", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret123")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	t.Run("surrounding spaces", func(t *testing.T) {
		padded, err := svc.Register(ctx, " alice ", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice", padded.Username)

		_, err = svc.Register(ctx, "alice", "other")
		require.ErrorIs(t, err, domain.ErrDuplicateUsername)

		logged, err := svc.Login(ctx, "alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, padded.ID, logged.ID)

		logged, err = svc.Login(ctx, "  alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, padded.ID, logged.ID)
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		store := &mocks.UserStoreMock{}
		svc := NewAuthService(store, bcrypt.MinCost)
		for _, tc := range [][2]string{{"", "pass"}, {"  ", "pass"}, {"user", ""}} {
			_, err := svc.Register(context.Background(), tc[0], tc[1])
			require.ErrorIs(t, err, domain.ErrMissingCredentials)
		}
		assert.Empty(t, store.CreateUserCalls())
	})

	t.Run("password too long", func(t *testing.T) {
		store := &mocks.UserStoreMock{}
		svc := NewAuthService(store, bcrypt.MinCost)
		_, err := svc.Register(context.Background(), "user", strings.Repeat("x", 73))
		require.ErrorIs(t, err, domain.ErrPasswordTooLong)
	})

	t.Run("stored record", func(t *testing.T) {
		store := &mocks.UserStoreMock{
			CreateUserFunc: func(context.Context, domain.UserRecord) error { return nil },
		}
		svc := NewAuthService(store, bcrypt.MinCost)
		svc.now = func() time.Time { return time.Date(2025, 8, 8, 9, 0, 0, 500, time.UTC) }

		user, err := svc.Register(context.Background(), "user", "pass")
		require.NoError(t, err)
		require.Len(t, store.CreateUserCalls(), 1)
		stored := store.CreateUserCalls()[0].User
		assert.Equal(t, user, stored)
		assert.Equal(t, time.Date(2025, 8, 8, 9, 0, 0, 0, time.UTC), stored.CreatedAt)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pass")))
	})

	t.Run("trimmed username stored", func(t *testing.T) {
		store := &mocks.UserStoreMock{
			CreateUserFunc: func(context.Context, domain.UserRecord) error { return nil },
		}
		svc := NewAuthService(store, bcrypt.MinCost)
		user, err := svc.Register(context.Background(), "\tuser ", "pass")
		require.NoError(t, err)
		assert.Equal(t, "user", user.Username)
		require.Len(t, store.CreateUserCalls(), 1)
		assert.Equal(t, "user", store.CreateUserCalls()[0].User.Username)
	})

	t.Run("store error", func(t *testing.T) {
		store := &mocks.UserStoreMock{
			CreateUserFunc: func(context.Context, domain.UserRecord) error { return errors.New("disk I/O error") },
		}
		svc := NewAuthService(store, bcrypt.MinCost)
		_, err := svc.Register(context.Background(), "user", "pass")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrDuplicateUsername)
		assert.Contains(t, err.Error(), "disk I/O error")
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &mocks.UserStoreMock{
		GetUserByUsernameFunc: func(_ context.Context, username string) (domain.UserRecord, error) {
			switch username {
			case "user":
				return domain.UserRecord{ID: "id1", Username: "user", PasswordHash: string(hash)}, nil
			case "broken":
				return domain.UserRecord{}, errors.New("database is closed")
			}
			return domain.UserRecord{}, domain.ErrUserNotFound
		},
	}
	svc := NewAuthService(store, 0)

	user, err := svc.Login(context.Background(), "user", "pass")
	require.NoError(t, err)
	assert.Equal(t, "id1", user.ID)

	_, err = svc.Login(context.Background(), "user", "bad")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "ghost", "pass")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "broken", "pass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "", "pass")
	require.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Len(t, store.GetUserByUsernameCalls(), 4)
}

// Package service implements user registration and login on top of the user store
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/metrics"
)

//go:generate moq -out mocks/user_store.go -pkg mocks -skip-ensure -fmt goimports . UserStore

// maxPasswordLen is the bcrypt input limit
const maxPasswordLen = 72

// UserStore persists users
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserRecord) error
	GetUserByUsername(ctx context.Context, username string) (domain.UserRecord, error)
}

// AuthService registers users and checks their credentials
type AuthService struct {
	store UserStore
	cost  int
	now   func() time.Time
}

// NewAuthService creates auth service, cost is bcrypt cost, bcrypt.DefaultCost if zero
func NewAuthService(store UserStore, cost int) *AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{store: store, cost: cost, now: time.Now}
}

// Register creates a user with hashed password
func (s *AuthService) Register(ctx context.Context, username, password string) (user domain.UserRecord, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.UserRecord{}, domain.ErrMissingCredentials
	}
	if len(password) > maxPasswordLen {
		return domain.UserRecord{}, domain.ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("hash password: %w", err)
	}

	user = domain.UserRecord{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.UserRecord{}, fmt.Errorf("register %q: %w", username, err)
	}
	lgr.Printf("[INFO] registered user %s", username)
	return user, nil
}

// Login checks credentials, unknown user and wrong password both give domain.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, username, password string) (user domain.UserRecord, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.UserRecord{}, domain.ErrMissingCredentials
	}

	user, err = s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			lgr.Printf("[DEBUG] login for unknown user %s", username)
			return domain.UserRecord{}, domain.ErrInvalidCredentials
		}
		return domain.UserRecord{}, fmt.Errorf("login %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		lgr.Printf("[DEBUG] wrong password for %s", username)
		return domain.UserRecord{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

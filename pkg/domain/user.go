package domain

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateUsername returned by registration when the username is taken
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials returned by login for unknown user or wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMissingCredentials returned when username or password is empty
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrPasswordTooLong returned by registration for passwords bcrypt can't hash
	ErrPasswordTooLong = errors.New("password is longer than 72 bytes")
	// ErrUserNotFound returned by the store for unknown username
	ErrUserNotFound = errors.New("user not found")
)

// UserRecord represents a registered user
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

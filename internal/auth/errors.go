package auth

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the password does not match
	// the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when no account matches the login identifier.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when username or email already exists.
	ErrConflict = errors.New("username or email already exists")
	// ErrUnauthenticated covers every verification and refresh failure that
	// must stay indistinguishable on the wire: missing account, stale or
	// mismatched refresh token, absent credentials.
	ErrUnauthenticated = errors.New("unauthorized request")
)

// ValidationError lists the missing or malformed signup fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

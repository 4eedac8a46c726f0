package auth

import "errors"

var (
	// ErrUnauthenticated is returned when no active session backs a request.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrInvalidCredentials is returned when email or password is wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUserExists is returned when registering an already-taken email.
	ErrUserExists = errors.New("auth: user already exists")
	// ErrInvalidToken is returned for malformed or tampered tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
)

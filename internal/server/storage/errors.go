package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token record was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrTokenAlreadyRotated indicates that the record was revoked or replaced
	// before the conditional rotation update could claim it
	ErrTokenAlreadyRotated = errors.New("refresh token already rotated")
)

package auth

import "errors"

var (
	// ErrInvalidCredentials unknown email, wrong password or soft-deleted identity
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccessDenied valid credentials without the administrative flag
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidToken malformed, expired, revoked or reused token.
	// The cause is never exposed to the caller.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidInput registration input failed validation
	ErrInvalidInput = errors.New("invalid input")
)

// Внутренние причины отказа ротации; наружу всегда ErrInvalidToken
var (
	errNoMatch = errors.New("no matching ledger record")
	errReuse   = errors.New("rotated refresh token presented again")
	errRace    = errors.New("refresh token rotated concurrently")
)

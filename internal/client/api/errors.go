package api

import "errors"

var (
	// ErrUnavailable covers transport failures and non-OK health checks.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the session token is missing, invalid, or expired.
	ErrUnauthorized = errors.New("unauthorized")
)

package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication state errors
	ErrAccountNotLocked = errors.New("account is not locked")
	ErrPasswordExpired  = errors.New("password has expired")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrChallengeFailed  = errors.New("challenge verification failed")
)

package auth

import "errors"

// Sentinel errors for token handling.
var (
	ErrMissingSecret = errors.New("token secret is empty")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpired       = errors.New("token expired")
	ErrForbidden     = errors.New("forbidden")
)

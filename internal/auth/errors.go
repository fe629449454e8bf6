package auth

import "errors"

var (
	ErrInvalidPrincipal = errors.New("auth: principal id is required")
	ErrUnknownRole      = errors.New("auth: unknown role")
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrMissingSecret    = errors.New("auth: signing secret is not configured")
)

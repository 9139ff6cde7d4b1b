package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("user already exists")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
)

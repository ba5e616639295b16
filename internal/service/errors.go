package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("invalid credentials")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrMissingToken  = errors.New("access token missing")
	ErrRevokedToken  = errors.New("access token revoked")
	ErrInvalidToken  = errors.New("access token invalid")
	ErrMisconfigured = errors.New("auth config invalid")
)

// ValidationError carries a client-facing message and matches ErrInvalidInput.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ConflictError names the unique field that is already taken and matches ErrConflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

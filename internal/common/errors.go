// Package common defines shared constants and sentinel errors used across
// Lettera components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")

	// Token errors. Every verification failure collapses into
	// ErrInvalidToken so callers cannot tell a bad signature from an
	// expired or malformed token.
	ErrInvalidToken = errors.New("invalid token")
	ErrShortKey     = errors.New("signing key is too short")

	// Authentication outcomes. ErrMissingCredential means no carrier was
	// present at all; ErrInvalidCredential means a carrier was present
	// but did not verify; ErrNotAuthenticated means a session id resolved
	// to no live session.
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNotAuthenticated  = errors.New("not authenticated")

	// ErrBackend marks failures of an external store (pool exhaustion,
	// network partition, corrupt payload). It must never be reported to
	// a client as an authentication failure.
	ErrBackend = errors.New("backend unavailable")
)

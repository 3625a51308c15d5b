package service

import (
	"errors"
	"fmt"
	"time"
)

// Outcome sentinels. The HTTP layer maps each to a status code; callers
// match with errors.Is and pull detail out with errors.As.
var (
	ErrValidation    = errors.New("invalid request")
	ErrAuthorization = errors.New("not allowed to issue this credential")
	ErrQuotaExceeded = errors.New("daily issuance quota exceeded")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("credential is not in a usable state")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrRateLimited   = errors.New("rate limited")
)

// ValidationError is malformed input. It is never a security event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is an illegal state transition. State is the credential's
// state at the time of the attempt.
type ConflictError struct {
	State string
}

func (e *ConflictError) Error() string {
	return "credential is " + e.State
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

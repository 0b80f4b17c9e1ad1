package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores for missing records
var ErrNotFound = errors.New("not found")

// Kind classifies every authentication and authorization failure.
type Kind string

const (
	InvalidCredentials  Kind = "invalid_credentials"
	AccountLocked       Kind = "account_locked"
	AccountInactive     Kind = "account_inactive"
	PartnershipInactive Kind = "partnership_inactive"
	InvalidToken        Kind = "invalid_token"
	TokenExpired        Kind = "token_expired"
	ServiceUnavailable  Kind = "service_unavailable"
	ConfigurationError  Kind = "configuration_error"
)

// Message returns the generic user-facing text for the kind.
func (k Kind) Message() string {
	switch k {
	case InvalidCredentials:
		return "invalid identifier or password"
	case AccountLocked:
		return "account is temporarily locked"
	case AccountInactive:
		return "account is not active"
	case PartnershipInactive:
		return "partnership is not active"
	case InvalidToken:
		return "invalid token"
	case TokenExpired:
		return "token expired"
	case ConfigurationError:
		return "service misconfigured"
	}
	return "service unavailable"
}

// AuthError is the single error type returned across the authentication boundary.
// RemainingAttempts and LockedUntil are advisory hints for the client.
type AuthError struct {
	Kind              Kind
	RemainingAttempts *int
	LockedUntil       *time.Time
	Err               error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches another *AuthError of the same kind, so errors.Is(err, New(AccountLocked)) works.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an AuthError of the given kind with no cause.
func New(kind Kind) *AuthError {
	return &AuthError{Kind: kind}
}

// WithCause creates an AuthError of the given kind wrapping err.
func WithCause(kind Kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// NewInvalidCredentials carries the remaining attempts hint.
func NewInvalidCredentials(remaining *int) *AuthError {
	return &AuthError{Kind: InvalidCredentials, RemainingAttempts: remaining}
}

// NewAccountLocked carries the lock expiry for UI countdowns.
func NewAccountLocked(until time.Time) *AuthError {
	return &AuthError{Kind: AccountLocked, LockedUntil: &until}
}

// KindOf returns the Kind of err. Unclassified errors are reported as ServiceUnavailable.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ServiceUnavailable
}

// AsAuthError returns err as an *AuthError, classifying anything else as ServiceUnavailable.
func AsAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return WithCause(ServiceUnavailable, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

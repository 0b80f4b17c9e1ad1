package credentials

import (
	"context"
	"time"
)

// LockFunc maps the incremented failed-attempt count to a lock expiry (nil for no lock).
type LockFunc func(failedAttempts int) *time.Time

// Store is the Credential Store contract. Missing records are reported with errors.ErrNotFound.
type Store interface {
	FindCredential(ctx context.Context, identifier string) (*Credential, error)
	GetByID(ctx context.Context, id string) (*Credential, error)

	// RecordFailedAttempt increments failed_attempts and applies lockFn to the new
	// count as one atomic read-increment-write, returning the persisted state.
	RecordFailedAttempt(ctx context.Context, id string, lockFn LockFunc) (LockoutState, error)

	UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error

	// RecordSuccessfulLogin resets the lockout state to (0, nil) and stores the login time in one write.
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error

	IsActive(ctx context.Context, id string) (bool, error)
}

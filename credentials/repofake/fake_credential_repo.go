package credentialrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/ses-client-auth/credentials"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/internal/utils"
)

var _ credentials.Store = (*FakeCredentialRepo)(nil)

// FakeCredentialRepo is an in-memory credentials.Store. All mutations happen under one lock,
// which makes RecordFailedAttempt atomic.
type FakeCredentialRepo struct {
	credentials map[string]*credentials.Credential
	identifiers map[string]string // identifier to credential id
	writes      map[string]int    // credential id to number of writes
	failWith    error
	lock        sync.RWMutex
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return &FakeCredentialRepo{
		credentials: make(map[string]*credentials.Credential),
		identifiers: make(map[string]string),
		writes:      make(map[string]int),
	}
}

func (r *FakeCredentialRepo) Upsert(c *credentials.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.credentials[c.ID] = c.Clone()
	r.identifiers[c.Identifier] = c.ID
	return nil
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (r *FakeCredentialRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failWith = err
}

// Writes returns how many mutating calls touched the credential.
func (r *FakeCredentialRepo) Writes(id string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes[id]
}

func (r *FakeCredentialRepo) FindCredential(ctx context.Context, identifier string) (*credentials.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}
	id, ok := r.identifiers[identifier]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	return r.credentials[id].Clone(), nil
}

func (r *FakeCredentialRepo) GetByID(ctx context.Context, id string) (*credentials.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}
	c, ok := r.credentials[id]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *FakeCredentialRepo) RecordFailedAttempt(ctx context.Context, id string, lockFn credentials.LockFunc) (credentials.LockoutState, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.check(ctx); err != nil {
		return credentials.LockoutState{}, err
	}
	c, ok := r.credentials[id]
	if !ok {
		return credentials.LockoutState{}, autherrors.ErrNotFound
	}
	c.FailedAttempts++
	c.LockedUntil = lockFn(c.FailedAttempts)
	r.writes[id]++
	return credentials.LockoutState{FailedAttempts: c.FailedAttempts, LockedUntil: c.LockedUntil}, nil
}

func (r *FakeCredentialRepo) UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}
	c, ok := r.credentials[id]
	if !ok {
		return autherrors.ErrNotFound
	}
	c.FailedAttempts = failedAttempts
	c.LockedUntil = nil
	if lockedUntil != nil {
		c.LockedUntil = utils.Ptr(*lockedUntil)
	}
	r.writes[id]++
	return nil
}

func (r *FakeCredentialRepo) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.check(ctx); err != nil {
		return err
	}
	c, ok := r.credentials[id]
	if !ok {
		return autherrors.ErrNotFound
	}
	c.FailedAttempts = 0
	c.LockedUntil = nil
	c.LastLoginAt = utils.Ptr(at)
	r.writes[id]++
	return nil
}

func (r *FakeCredentialRepo) IsActive(ctx context.Context, id string) (bool, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return c.Active, nil
}

func (r *FakeCredentialRepo) SetActive(id string, active bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	c, ok := r.credentials[id]
	if !ok {
		return autherrors.ErrNotFound
	}
	c.Active = active
	return nil
}

func (r *FakeCredentialRepo) check(ctx context.Context) error {
	if r.failWith != nil {
		return r.failWith
	}
	return ctx.Err()
}

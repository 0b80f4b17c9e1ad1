// Package auth authenticates client-company users and issues their session tokens.
package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/ses-client-auth/credentials"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/internal/metrics"
	"github.com/jrsteele09/ses-client-auth/internal/utils"
	"github.com/jrsteele09/ses-client-auth/lockout"
	"github.com/jrsteele09/ses-client-auth/partnerships"
	"github.com/jrsteele09/ses-client-auth/session"
	"github.com/jrsteele09/ses-client-auth/visibility"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultStoreTimeout = 3 * time.Second

// Login and refresh outcomes reported to metrics.
const (
	outcomeSuccess = "success"
)

// TokenPair is the access and refresh token issued for one session.
type TokenPair struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Result is returned by Login and Refresh.
type Result struct {
	TokenPair
	Principal      session.Principal           `json:"principal"`
	PermissionType partnerships.PermissionType `json:"permissionType"`
}

// Authenticator orchestrates credential checks, lockout and token issuance.
type Authenticator struct {
	credentials  credentials.Store
	resolver     *visibility.Resolver
	codec        *session.Codec
	nowTime      func() time.Time
	storeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// AuthenticatorOption defines a function type to modify the Authenticator instance.
type AuthenticatorOption func(*Authenticator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.nowTime = nowFunc
	}
}

// WithStoreTimeout bounds every credential store call.
func WithStoreTimeout(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if d > 0 {
			a.storeTimeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) AuthenticatorOption {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

func NewAuthenticator(
	store credentials.Store,
	resolver *visibility.Resolver,
	codec *session.Codec,
	options ...AuthenticatorOption,
) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("[NewAuthenticator] credential store is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewAuthenticator] visibility resolver is required")
	}
	if codec == nil {
		return nil, errors.New("[NewAuthenticator] token codec is required")
	}

	a := &Authenticator{
		credentials:  store,
		resolver:     resolver,
		codec:        codec,
		nowTime:      time.Now,
		storeTimeout: defaultStoreTimeout,
		logger:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Login verifies the identifier and password and issues a token pair.
// Every failure is an *errors.AuthError.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (*Result, error) {
	res, err := a.login(ctx, identifier, password)
	if err != nil {
		kind := autherrors.KindOf(err)
		a.metrics.LoginOutcome(string(kind))
		if kind == autherrors.ServiceUnavailable {
			a.logger.Error().Err(err).Msg("login failed")
		}
		return nil, autherrors.AsAuthError(err)
	}
	a.metrics.LoginOutcome(outcomeSuccess)
	return res, nil
}

func (a *Authenticator) login(ctx context.Context, identifier, password string) (*Result, error) {
	now := a.nowTime()

	cred, err := a.findCredential(ctx, identifier)
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			credentials.BurnPasswordCheck(password)
			return nil, autherrors.NewInvalidCredentials(nil)
		}
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}

	// Locked accounts are refused before the password is compared.
	if cred.IsLocked(now) {
		return nil, autherrors.NewAccountLocked(*cred.LockedUntil)
	}
	if !cred.Active {
		return nil, autherrors.New(autherrors.AccountInactive)
	}
	if err := a.resolver.CheckPartnership(ctx, cred.PartnershipID); err != nil {
		return nil, err
	}

	if !credentials.CheckPasswordHash(password, cred.PasswordHash) {
		return nil, a.recordFailure(ctx, cred, now)
	}

	if err := a.withStoreTimeout(ctx, func(ctx context.Context) error {
		return a.credentials.RecordSuccessfulLogin(ctx, cred.ID, now)
	}); err != nil {
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}

	a.logger.Info().Str("user_id", cred.ID).Str("partnership_id", cred.PartnershipID).Msg("client user logged in")
	return a.issue(ctx, cred, "")
}

func (a *Authenticator) recordFailure(ctx context.Context, cred *credentials.Credential, now time.Time) error {
	var state credentials.LockoutState
	err := a.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		state, err = a.credentials.RecordFailedAttempt(ctx, cred.ID, func(failedAttempts int) *time.Time {
			return lockout.LockedUntil(failedAttempts, now)
		})
		return err
	})
	if err != nil {
		return autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}

	remaining := lockout.RemainingAttempts(state.FailedAttempts)
	authErr := autherrors.NewInvalidCredentials(&remaining)
	if decision := lockout.Decide(state.FailedAttempts); decision.Locked() {
		authErr.LockedUntil = state.LockedUntil
		a.metrics.Lockout(string(decision.Tier))
		a.logger.Warn().
			Str("user_id", cred.ID).
			Int("failed_attempts", state.FailedAttempts).
			Str("tier", string(decision.Tier)).
			Time("locked_until", utils.Value(state.LockedUntil)).
			Msg("client user locked out")
	}
	return authErr
}

// Refresh issues a new access token for a valid refresh token. Identity, roles
// and partnership state are re-read from the stores. The refresh token itself
// is returned unchanged.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	res, err := a.refresh(ctx, refreshToken)
	if err != nil {
		kind := autherrors.KindOf(err)
		a.metrics.RefreshOutcome(string(kind))
		if kind == autherrors.ServiceUnavailable {
			a.logger.Error().Err(err).Msg("refresh failed")
		}
		return nil, autherrors.AsAuthError(err)
	}
	a.metrics.RefreshOutcome(outcomeSuccess)
	return res, nil
}

func (a *Authenticator) refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := a.codec.Decode(refreshToken, session.AudienceRefresh)
	if err != nil {
		return nil, decodeFailure(err)
	}

	cred, err := a.getCredential(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.WithCause(autherrors.InvalidToken, err)
		}
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	if cred.IsLocked(a.nowTime()) {
		return nil, autherrors.NewAccountLocked(*cred.LockedUntil)
	}
	if !cred.Active {
		return nil, autherrors.New(autherrors.AccountInactive)
	}
	if err := a.resolver.CheckPartnership(ctx, cred.PartnershipID); err != nil {
		return nil, err
	}
	return a.issue(ctx, cred, refreshToken)
}

// Decode verifies an access token and returns its principal.
func (a *Authenticator) Decode(accessToken string) (*session.Principal, error) {
	p, err := a.codec.Decode(accessToken, session.AudienceAccess)
	if err != nil {
		return nil, decodeFailure(err)
	}
	return p, nil
}

// Authorize decodes an access token and confirms the account is still active.
// Partnership state is checked separately on every visibility lookup.
func (a *Authenticator) Authorize(ctx context.Context, accessToken string) (*session.Principal, error) {
	p, err := a.Decode(accessToken)
	if err != nil {
		return nil, err
	}

	var active bool
	err = a.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		active, err = a.credentials.IsActive(ctx, p.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.WithCause(autherrors.InvalidToken, err)
		}
		a.logger.Error().Err(err).Str("user_id", p.UserID).Msg("active check failed")
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	if !active {
		return nil, autherrors.New(autherrors.AccountInactive)
	}
	return p, nil
}

// Unlock clears the lockout state. It is the administrative reset for the permanent tier.
func (a *Authenticator) Unlock(ctx context.Context, userID string) error {
	err := a.withStoreTimeout(ctx, func(ctx context.Context) error {
		return a.credentials.UpdateLockoutState(ctx, userID, 0, nil)
	})
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			return errors.Wrapf(err, "[Unlock] user %s", userID)
		}
		return autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	a.logger.Info().Str("user_id", userID).Msg("client user unlocked")
	return nil
}

// issue resolves the current grant and mints tokens. When refreshToken is set it is echoed back.
func (a *Authenticator) issue(ctx context.Context, cred *credentials.Credential, refreshToken string) (*Result, error) {
	grant, err := a.resolver.ActiveGrant(ctx, cred.PartnershipID)
	if err != nil {
		return nil, err
	}

	now := a.nowTime()
	principal := session.Principal{
		UserID:        cred.ID,
		Identifier:    cred.Identifier,
		DisplayName:   cred.DisplayName,
		PartnershipID: cred.PartnershipID,
		Roles:         cred.RoleNames(),
		Permissions:   cred.PermissionNames(),
	}

	accessToken, err := a.codec.Encode(principal, session.AudienceAccess)
	if err != nil {
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, errors.Wrap(err, "[issue] access token"))
	}

	if refreshToken == "" {
		refreshToken, err = a.codec.Encode(principal, session.AudienceRefresh)
		if err != nil {
			return nil, autherrors.WithCause(autherrors.ServiceUnavailable, errors.Wrap(err, "[issue] refresh token"))
		}
	}

	return &Result{
		TokenPair: TokenPair{
			AccessToken:     accessToken,
			RefreshToken:    refreshToken,
			AccessExpiresAt: now.Add(session.Expiry(session.AudienceAccess)),
		},
		Principal:      principal,
		PermissionType: visibility.ScopeOf(grant),
	}, nil
}

func (a *Authenticator) findCredential(ctx context.Context, identifier string) (*credentials.Credential, error) {
	var cred *credentials.Credential
	err := a.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		cred, err = a.credentials.FindCredential(ctx, identifier)
		return err
	})
	return cred, err
}

func (a *Authenticator) getCredential(ctx context.Context, id string) (*credentials.Credential, error) {
	var cred *credentials.Credential
	err := a.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		cred, err = a.credentials.GetByID(ctx, id)
		return err
	})
	return cred, err
}

func (a *Authenticator) withStoreTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func decodeFailure(err error) error {
	var de *session.DecodeError
	if errors.As(err, &de) {
		return de.AuthError()
	}
	return autherrors.WithCause(autherrors.InvalidToken, err)
}

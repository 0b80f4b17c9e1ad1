package visibility

import (
	"context"
	"time"

	"github.com/jrsteele09/ses-client-auth/engineers"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/partnerships"
	"github.com/jrsteele09/ses-client-auth/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 3 * time.Second

// Resolver derives the live filter for a session on every request. Grants are
// never cached; a change after token issuance applies to the next request.
type Resolver struct {
	registry  partnerships.Registry
	directory engineers.Directory
	timeout   time.Duration
	logger    zerolog.Logger
}

type ResolverOption func(*Resolver)

// WithTimeout bounds each registry or directory call.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

func NewResolver(registry partnerships.Registry, directory engineers.Directory, options ...ResolverOption) (*Resolver, error) {
	if registry == nil {
		return nil, errors.New("[NewResolver] partnership registry is required")
	}
	if directory == nil {
		return nil, errors.New("[NewResolver] engineer directory is required")
	}
	r := &Resolver{
		registry:  registry,
		directory: directory,
		timeout:   defaultTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// CheckPartnership fails with PartnershipInactive when the partnership is missing
// or suspended, and with ServiceUnavailable on any registry error.
func (r *Resolver) CheckPartnership(ctx context.Context, partnershipID string) error {
	if partnershipID == "" {
		return autherrors.New(autherrors.PartnershipInactive)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.registry.FindPartnership(ctx, partnershipID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return autherrors.WithCause(autherrors.PartnershipInactive, err)
		}
		r.logger.Error().Err(err).Str("partnership_id", partnershipID).Msg("partnership lookup failed")
		return autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	if !p.Active {
		return autherrors.New(autherrors.PartnershipInactive)
	}
	return nil
}

// ActiveGrant loads the partnership's authoritative grant. A nil grant means NoGrant.
func (r *Resolver) ActiveGrant(ctx context.Context, partnershipID string) (*partnerships.Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	grant, err := r.registry.FindActiveGrant(ctx, partnershipID)
	if err != nil {
		r.logger.Error().Err(err).Str("partnership_id", partnershipID).Msg("grant lookup failed")
		return nil, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	return grant, nil
}

// CurrentGrant checks the partnership and then loads its grant.
func (r *Resolver) CurrentGrant(ctx context.Context, partnershipID string) (*partnerships.Grant, error) {
	if err := r.CheckPartnership(ctx, partnershipID); err != nil {
		return nil, err
	}
	return r.ActiveGrant(ctx, partnershipID)
}

// ResolveFilter returns the live filter for the principal. On any error the
// returned filter denies everything.
func (r *Resolver) ResolveFilter(ctx context.Context, p *session.Principal) (Filter, error) {
	if p == nil {
		return Deny(), autherrors.New(autherrors.InvalidToken)
	}
	grant, err := r.CurrentGrant(ctx, p.PartnershipID)
	if err != nil {
		return Deny(), err
	}
	return Resolve(grant), nil
}

// CanView reports whether the principal may read the engineer. Unknown engineers are not visible.
func (r *Resolver) CanView(ctx context.Context, p *session.Principal, engineerID string) (bool, error) {
	filter, err := r.ResolveFilter(ctx, p)
	if err != nil {
		return false, err
	}
	if filter.MatchesNothing() {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	e, err := r.directory.Find(ctx, engineerID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return false, nil
		}
		return false, autherrors.WithCause(autherrors.ServiceUnavailable, err)
	}
	return filter.Matches(*e), nil
}

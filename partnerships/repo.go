package partnerships

import "context"

// Registry is the Partnership Registry contract.
type Registry interface {
	// FindPartnership returns errors.ErrNotFound when the partnership does not exist.
	FindPartnership(ctx context.Context, id string) (*Partnership, error)

	// FindActiveGrant returns the single authoritative grant, or (nil, nil) when none exists.
	FindActiveGrant(ctx context.Context, partnershipID string) (*Grant, error)
}

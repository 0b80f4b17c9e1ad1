package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/partnerships"
)

var _ partnerships.Registry = (*PartnershipRegistry)(nil)

type PartnershipRegistry struct {
	db *sql.DB
}

func NewPartnershipRegistry(db *sql.DB) *PartnershipRegistry {
	return &PartnershipRegistry{db: db}
}

func (r *PartnershipRegistry) FindPartnership(ctx context.Context, id string) (*partnerships.Partnership, error) {
	query := `SELECT id, staffing_company_id, client_company_id, is_active, created_at
		FROM partnerships WHERE id = $1`

	var p partnerships.Partnership
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.StaffingCompanyID, &p.ClientCompanyID, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// FindActiveGrant returns (nil, nil) when the partnership has no active grant.
func (r *PartnershipRegistry) FindActiveGrant(ctx context.Context, partnershipID string) (*partnerships.Grant, error) {
	query := `SELECT id, partnership_id, permission_type, engineer_ids
		FROM partnership_grants
		WHERE partnership_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`

	g := partnerships.Grant{Active: true}
	var engineerIDs []string
	err := r.db.QueryRowContext(ctx, query, partnershipID).Scan(
		&g.ID, &g.PartnershipID, &g.PermissionType, pgtype.NewMap().SQLScanner(&engineerIDs))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.EngineerIDs = engineerIDs
	return &g, nil
}

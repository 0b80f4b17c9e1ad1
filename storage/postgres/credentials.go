package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/ses-client-auth/credentials"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
)

var _ credentials.Store = (*CredentialStore)(nil)

const credentialColumns = `id, identifier, display_name, password_hash, partnership_id, is_active,
		failed_attempts, locked_until, last_login_at`

type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) FindCredential(ctx context.Context, identifier string) (*credentials.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM client_users WHERE identifier = $1`
	return s.getOne(ctx, query, identifier)
}

func (s *CredentialStore) GetByID(ctx context.Context, id string) (*credentials.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM client_users WHERE id = $1`
	return s.getOne(ctx, query, id)
}

func (s *CredentialStore) getOne(ctx context.Context, query string, arg string) (*credentials.Credential, error) {
	var (
		c           credentials.Credential
		lockedUntil sql.NullTime
		lastLoginAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Identifier, &c.DisplayName, &c.PasswordHash, &c.PartnershipID, &c.Active,
		&c.FailedAttempts, &lockedUntil, &lastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.LockedUntil = nullTimePtr(lockedUntil)
	c.LastLoginAt = nullTimePtr(lastLoginAt)

	roles, err := s.roles(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Roles = roles
	return &c, nil
}

// roles loads the user's roles in assignment order with their permissions.
func (s *CredentialStore) roles(ctx context.Context, userID string) ([]credentials.Role, error) {
	query := `SELECT r.name, rp.permission
		FROM client_user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY ur.position, r.name, rp.permission`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	roles := make([]credentials.Role, 0)
	for rows.Next() {
		var (
			name       string
			permission sql.NullString
		)
		if err := rows.Scan(&name, &permission); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(roles) == 0 || roles[len(roles)-1].Name != name {
			roles = append(roles, credentials.Role{Name: name})
		}
		if permission.Valid {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, permission.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

// RecordFailedAttempt increments the counter in place, which holds the row lock
// until the lock expiry for the new count is written in the same transaction.
func (s *CredentialStore) RecordFailedAttempt(ctx context.Context, id string, lockFn credentials.LockFunc) (credentials.LockoutState, error) {
	var state credentials.LockoutState
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE client_users SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`,
			id).Scan(&state.FailedAttempts)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return autherrors.ErrNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}

		state.LockedUntil = lockFn(state.FailedAttempts)
		if _, err := tx.ExecContext(ctx,
			`UPDATE client_users SET locked_until = $2 WHERE id = $1`,
			id, nullTime(state.LockedUntil)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return credentials.LockoutState{}, err
	}
	return state, nil
}

func (s *CredentialStore) UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE client_users SET failed_attempts = $2, locked_until = $3 WHERE id = $1`,
		id, failedAttempts, nullTime(lockedUntil))
	return checkAffected(res, err)
}

func (s *CredentialStore) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE client_users SET failed_attempts = 0, locked_until = NULL, last_login_at = $2 WHERE id = $1`,
		id, at)
	return checkAffected(res, err)
}

func (s *CredentialStore) IsActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `SELECT is_active FROM client_users WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, autherrors.ErrNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return active, nil
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return autherrors.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

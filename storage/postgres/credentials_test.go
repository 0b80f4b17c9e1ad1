package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jrsteele09/ses-client-auth/credentials"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/lockout"
	"github.com/stretchr/testify/require"
)

var credentialCols = []string{
	"id", "identifier", "display_name", "password_hash", "partnership_id", "is_active",
	"failed_attempts", "locked_until", "last_login_at",
}

func TestCredentialStore_FindCredential(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)
	locked := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .* FROM client_users WHERE identifier = \$1`).
		WithArgs("buyer@client.example.com").
		WillReturnRows(sqlmock.NewRows(credentialCols).
			AddRow("u1", "buyer@client.example.com", "Buyer", "hash", "p1", true, 10, locked, nil))
	mock.ExpectQuery(`(?s)SELECT r.name, rp.permission.*WHERE ur.user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "permission"}).
			AddRow("client_buyer", "engineers:read").
			AddRow("client_buyer", "offers:create").
			AddRow("client_viewer", nil))

	c, err := store.FindCredential(context.Background(), "buyer@client.example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", c.ID)
	require.Equal(t, "p1", c.PartnershipID)
	require.True(t, c.Active)
	require.Equal(t, 10, c.FailedAttempts)
	require.Equal(t, locked, *c.LockedUntil)
	require.Nil(t, c.LastLoginAt)
	require.Equal(t, []credentials.Role{
		{Name: "client_buyer", Permissions: []string{"engineers:read", "offers:create"}},
		{Name: "client_viewer"},
	}, c.Roles)
}

func TestCredentialStore_FindCredential_NotFound(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)

	mock.ExpectQuery(`FROM client_users WHERE identifier = \$1`).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindCredential(context.Background(), "nobody")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestCredentialStore_GetByID_DBError(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)

	mock.ExpectQuery(`FROM client_users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("db down"))

	_, err := store.GetByID(context.Background(), "u1")
	require.ErrorContains(t, err, "db error: db down")
	require.NotErrorIs(t, err, autherrors.ErrNotFound)
}

func TestCredentialStore_RecordFailedAttempt(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	until := now.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE client_users SET failed_attempts = failed_attempts \+ 1 WHERE id = \$1 RETURNING failed_attempts`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(10))
	mock.ExpectExec(`UPDATE client_users SET locked_until = \$2 WHERE id = \$1`).
		WithArgs("u1", sql.NullTime{Time: until, Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	state, err := store.RecordFailedAttempt(context.Background(), "u1", func(n int) *time.Time {
		return lockout.LockedUntil(n, now)
	})
	require.NoError(t, err)
	require.Equal(t, 10, state.FailedAttempts)
	require.Equal(t, until, *state.LockedUntil)
}

func TestCredentialStore_RecordFailedAttempt_NotFoundRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE client_users SET failed_attempts`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.RecordFailedAttempt(context.Background(), "ghost", func(int) *time.Time { return nil })
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestCredentialStore_RecordSuccessfulLogin(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)
	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE client_users SET failed_attempts = 0, locked_until = NULL, last_login_at = \$2 WHERE id = \$1`).
		WithArgs("u1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordSuccessfulLogin(context.Background(), "u1", at))
}

func TestCredentialStore_UpdateLockoutState(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)

	mock.ExpectExec(`UPDATE client_users SET failed_attempts = \$2, locked_until = \$3 WHERE id = \$1`).
		WithArgs("u1", 0, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.UpdateLockoutState(context.Background(), "u1", 0, nil))

	mock.ExpectExec(`UPDATE client_users SET failed_attempts`).
		WithArgs("ghost", 0, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, store.UpdateLockoutState(context.Background(), "ghost", 0, nil), autherrors.ErrNotFound)
}

func TestCredentialStore_IsActive(t *testing.T) {
	db, mock := newMock(t)
	store := NewCredentialStore(db)

	mock.ExpectQuery(`SELECT is_active FROM client_users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))

	active, err := store.IsActive(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, active)
}

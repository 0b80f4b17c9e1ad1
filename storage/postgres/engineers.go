package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrsteele09/ses-client-auth/engineers"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/visibility"
)

var _ engineers.Directory = (*EngineerDirectory)(nil)

type EngineerDirectory struct {
	db *sql.DB
}

func NewEngineerDirectory(db *sql.DB) *EngineerDirectory {
	return &EngineerDirectory{db: db}
}

func (d *EngineerDirectory) Find(ctx context.Context, id string) (*engineers.Engineer, error) {
	var e engineers.Engineer
	err := d.db.QueryRowContext(ctx, `SELECT id, name, status FROM engineers WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &e, nil
}

// List returns the engineers matching filter, ordered by name then id.
func (d *EngineerDirectory) List(ctx context.Context, filter visibility.Filter) ([]engineers.Engineer, error) {
	where, args := filter.SQL("id", "status", 1)
	query := `SELECT id, name, status FROM engineers WHERE ` + where + ` ORDER BY name, id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	list := make([]engineers.Engineer, 0)
	for rows.Next() {
		var e engineers.Engineer
		if err := rows.Scan(&e.ID, &e.Name, &e.Status); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Directory reads the tenant tables. It never writes them.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) SocietyForFlat(ctx context.Context, flatID string) (string, error) {
	var society string
	err := d.db.QueryRowContext(ctx, `SELECT society_id FROM flats WHERE flat_id = ?;`, flatID).Scan(&society)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.NotFound("flat", flatID)
	}
	if err != nil {
		return "", fmt.Errorf("SocietyForFlat: %w", err)
	}
	return society, nil
}

func (d *Directory) ResidentsOfFlat(ctx context.Context, flatID string) ([]string, error) {
	return d.userIDs(ctx, `SELECT user_id FROM flat_residents WHERE flat_id = ? ORDER BY user_id;`, flatID)
}

func (d *Directory) GuardsOfSociety(ctx context.Context, societyID string) ([]string, error) {
	return d.userIDs(ctx, `SELECT user_id FROM guards WHERE society_id = ? ORDER BY user_id;`, societyID)
}

func (d *Directory) IsResident(ctx context.Context, userID, flatID string) (bool, error) {
	ok, err := exists(ctx, d.db, `SELECT 1 FROM flat_residents WHERE flat_id = ? AND user_id = ?;`, flatID, userID)
	if err != nil {
		return false, fmt.Errorf("IsResident: %w", err)
	}
	return ok, nil
}

func (d *Directory) IsGuard(ctx context.Context, userID, societyID string) (bool, error) {
	ok, err := exists(ctx, d.db, `SELECT 1 FROM guards WHERE society_id = ? AND user_id = ?;`, societyID, userID)
	if err != nil {
		return false, fmt.Errorf("IsGuard: %w", err)
	}
	return ok, nil
}

func (d *Directory) userIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("directory query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("directory scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

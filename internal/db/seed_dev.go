package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	SocietyID  string
	FlatIDs    []string
	ResidentID string // attached to the first flat
	GuardID    string
}

// DefaultSeed is the directory the dev server starts with.
var DefaultSeed = SeedDevOptions{
	SocietyID:  "S-1",
	FlatIDs:    []string{"F-101", "F-102"},
	ResidentID: "resident-1",
	GuardID:    "guard-1",
}

// SeedDev writes a small directory through w. Safe to run repeatedly.
func SeedDev(ctx context.Context, w *Worker, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	return w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO societies(society_id, name, created_at_ms)
VALUES (?, 'Dev Society', ?);`, opt.SocietyID, now); err != nil {
			return fmt.Errorf("seed societies: %w", err)
		}

		for _, fid := range opt.FlatIDs {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO flats(flat_id, society_id, label, created_at_ms)
VALUES (?, ?, ?, ?);`, fid, opt.SocietyID, fid, now); err != nil {
				return fmt.Errorf("seed flat %s: %w", fid, err)
			}
		}

		if opt.ResidentID != "" && len(opt.FlatIDs) > 0 {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO flat_residents(flat_id, user_id) VALUES (?, ?);`,
				opt.FlatIDs[0], opt.ResidentID); err != nil {
				return fmt.Errorf("seed resident: %w", err)
			}
		}

		if opt.GuardID != "" {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO guards(user_id, society_id) VALUES (?, ?);`,
				opt.GuardID, opt.SocietyID); err != nil {
				return fmt.Errorf("seed guard: %w", err)
			}
		}
		return nil
	})
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type DeliveryTargetStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDeliveryTargetStore(db *sql.DB, writer *dbpkg.Worker) *DeliveryTargetStore {
	return &DeliveryTargetStore{db: db, writer: writer}
}

func (s *DeliveryTargetStore) Upsert(ctx context.Context, t types.DeliveryTarget) (types.DeliveryTarget, error) {
	now := toMs(time.Now())
	var out types.DeliveryTarget
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO delivery_targets(target_id, user_id, token, device_type, is_active, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(token) DO UPDATE SET
  user_id = excluded.user_id,
  device_type = excluded.device_type,
  is_active = 1,
  updated_at_ms = excluded.updated_at_ms;`,
			uuid.NewString(), t.UserID, t.Token, t.DeviceType, now, now,
		); err != nil {
			return fmt.Errorf("Upsert delivery_target: %w", err)
		}

		var err error
		out, err = scanTarget(tx.QueryRowContext(ctx, `
SELECT target_id, user_id, token, device_type, is_active, created_at_ms, updated_at_ms
FROM delivery_targets WHERE token = ?;`, t.Token))
		return err
	})
	return out, err
}

func (s *DeliveryTargetStore) Deactivate(ctx context.Context, userID, token string) (bool, error) {
	var changed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE delivery_targets SET is_active = 0, updated_at_ms = ?
WHERE user_id = ? AND token = ? AND is_active = 1;`, toMs(time.Now()), userID, token)
		if err != nil {
			return fmt.Errorf("Deactivate delivery_target: %w", err)
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		return nil
	})
	return changed, err
}

func (s *DeliveryTargetStore) DeactivateTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		args := append([]any{toMs(time.Now())}, stringArgs(tokens)...)
		res, err := tx.ExecContext(ctx, `
UPDATE delivery_targets SET is_active = 0, updated_at_ms = ?
WHERE is_active = 1 AND token IN (`+placeholders(len(tokens))+`);`, args...)
		if err != nil {
			return fmt.Errorf("DeactivateTokens: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func (s *DeliveryTargetStore) ListActive(ctx context.Context, userIDs ...string) ([]types.DeliveryTarget, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT target_id, user_id, token, device_type, is_active, created_at_ms, updated_at_ms
FROM delivery_targets
WHERE is_active = 1 AND user_id IN (`+placeholders(len(userIDs))+`)
ORDER BY user_id, created_at_ms;`, stringArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer rows.Close()

	var out []types.DeliveryTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTarget(row rowScanner) (types.DeliveryTarget, error) {
	var (
		t                    types.DeliveryTarget
		active               int
		createdMs, updatedMs int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceType, &active, &createdMs, &updatedMs); err != nil {
		return types.DeliveryTarget{}, fmt.Errorf("scan delivery_target: %w", err)
	}
	t.Active = active != 0
	t.CreatedAt = fromMs(createdMs)
	t.UpdatedAt = fromMs(updatedMs)
	return t, nil
}

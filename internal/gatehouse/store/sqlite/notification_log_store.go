package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type NotificationLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewNotificationLogStore(db *sql.DB, writer *dbpkg.Worker) *NotificationLogStore {
	return &NotificationLogStore{db: db, writer: writer}
}

// AppendLogs writes all rows in one transaction.
func (s *NotificationLogStore) AppendLogs(ctx context.Context, logs []types.NotificationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO notification_logs(
  user_id, channel, event_type, request_id, payload, status,
  device_count, delivered_count, created_at_ms, delivered_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
		if err != nil {
			return fmt.Errorf("AppendLogs prepare: %w", err)
		}
		defer stmt.Close()

		for _, l := range logs {
			created := l.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := stmt.ExecContext(ctx,
				l.UserID, l.Channel, string(l.EventType), nullString(l.RequestID), l.Payload, string(l.Status),
				l.DeviceCount, l.DeliveredCount, toMs(created), nullMs(l.DeliveredAt),
			); err != nil {
				return fmt.Errorf("AppendLogs insert %s: %w", l.UserID, err)
			}
		}
		return nil
	})
}

func (s *NotificationLogStore) ListLogs(ctx context.Context, userID string, limit int) ([]types.NotificationLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT log_id, user_id, channel, event_type, request_id, payload, status,
       device_count, delivered_count, created_at_ms, delivered_at_ms
FROM notification_logs WHERE user_id = ?
ORDER BY created_at_ms DESC, log_id DESC
LIMIT ?;`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListLogs: %w", err)
	}
	defer rows.Close()

	var out []types.NotificationLog
	for rows.Next() {
		var (
			l           types.NotificationLog
			eventType   string
			requestID   sql.NullString
			status      string
			createdMs   int64
			deliveredMs sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Channel, &eventType, &requestID, &l.Payload, &status,
			&l.DeviceCount, &l.DeliveredCount, &createdMs, &deliveredMs); err != nil {
			return nil, fmt.Errorf("ListLogs scan: %w", err)
		}
		l.EventType = types.EventType(eventType)
		l.RequestID = requestID.String
		l.Status = types.NotificationStatus(status)
		l.CreatedAt = fromMs(createdMs)
		l.DeliveredAt = fromNullMs(deliveredMs)
		out = append(out, l)
	}
	return out, rows.Err()
}

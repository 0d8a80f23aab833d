package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMs(*t)
}

func fromNullMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n args.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func insertAudit(ctx context.Context, tx *sql.Tx, a types.AuditEntry) error {
	if a.Action == "" {
		return nil
	}
	var payload any
	if len(a.Payload) > 0 {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return fmt.Errorf("audit payload: %w", err)
		}
		payload = string(b)
	}
	at := a.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_logs(actor_id, actor_role, action, resource_type, resource_id, payload, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		nullString(a.ActorID), string(a.ActorRole), a.Action, a.ResourceType, a.ResourceID, payload, toMs(at),
	); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const requestColumns = `
  request_id, visitor_name, phone, id_type, id_number, vehicle_no, purpose,
  number_of_people, flat_id, society_id, inviter_id, inviter_role,
  qr_code, access_code, expected_start_ms, expected_end_ms, status,
  approval_deadline_ms, auto_approved, idempotency_key, created_at_ms, updated_at_ms`

const visitColumns = `
  visit_id, request_id, checkin_guard_id, checkin_method, notes,
  checkin_at_ms, checkout_guard_id, checkout_at_ms`

// AccessRequestStore reads through db and writes through the single-writer
// worker, so every Transition is a serialized read-modify-write.
type AccessRequestStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessRequestStore(db *sql.DB, writer *dbpkg.Worker) *AccessRequestStore {
	return &AccessRequestStore{db: db, writer: writer}
}

func (s *AccessRequestStore) Create(ctx context.Context, req types.AccessRequest, audit types.AuditEntry) (types.AccessRequest, bool, error) {
	var (
		out     types.AccessRequest
		created bool
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := scanRequest(tx.QueryRowContext(ctx,
				`SELECT `+requestColumns+` FROM access_requests WHERE idempotency_key = ?;`, req.IdempotencyKey))
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("Create idempotency lookup: %w", err)
			}
		}

		// qr codes and access codes share one lookup namespace at the gate.
		if req.QRCode != "" {
			taken, err := exists(ctx, tx, `SELECT 1 FROM access_requests WHERE qr_code = ? OR upper(access_code) = upper(?);`, req.QRCode, req.QRCode)
			if err != nil {
				return fmt.Errorf("Create qr_code check: %w", err)
			}
			if taken {
				return store.ErrDuplicateQRCode
			}
		}
		if req.AccessCode != "" {
			taken, err := exists(ctx, tx, `SELECT 1 FROM access_requests WHERE upper(access_code) = upper(?) OR upper(qr_code) = upper(?);`, req.AccessCode, req.AccessCode)
			if err != nil {
				return fmt.Errorf("Create access_code check: %w", err)
			}
			if taken {
				return store.ErrDuplicateAccessCode
			}
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_requests(`+requestColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			req.ID, req.VisitorName, req.Phone,
			nullString(req.IDType), nullString(req.IDNumber), nullString(req.VehicleNo), req.Purpose,
			req.NumberOfPeople, req.FlatID, req.SocietyID, req.InviterID, string(req.InviterRole),
			nullString(req.QRCode), nullString(req.AccessCode),
			nullMs(req.ExpectedStart), nullMs(req.ExpectedEnd), string(req.Status),
			nullMs(req.Deadline), boolInt(req.AutoApproved), nullString(req.IdempotencyKey),
			toMs(req.CreatedAt), toMs(req.UpdatedAt),
		); err != nil {
			return fmt.Errorf("Create insert: %w", err)
		}
		if err := insertAudit(ctx, tx, audit); err != nil {
			return err
		}

		rec, err := getRequest(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		out, created = rec, true
		return nil
	})
	if err != nil {
		return types.AccessRequest{}, false, err
	}
	return out, created, nil
}

func (s *AccessRequestStore) Transition(ctx context.Context, id string, fn store.TransitionFn) (types.AccessRequest, *types.Visit, error) {
	var (
		out   types.AccessRequest
		visit *types.Visit
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := getRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		v, err := getVisit(ctx, tx, id)
		if err != nil {
			return err
		}

		m, err := fn(cur, v)
		if err != nil {
			return err
		}
		if err := applyMutation(ctx, tx, cur, v, m); err != nil {
			return err
		}

		if out, err = getRequest(ctx, tx, id); err != nil {
			return err
		}
		visit, err = getVisit(ctx, tx, id)
		return err
	})
	if err != nil {
		return types.AccessRequest{}, nil, err
	}
	return out, visit, nil
}

func applyMutation(ctx context.Context, tx *sql.Tx, cur types.AccessRequest, v *types.Visit, m store.Mutation) error {
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
UPDATE access_requests
SET status = ?, auto_approved = MAX(auto_approved, ?), updated_at_ms = ?
WHERE request_id = ? AND status = ?;`,
		string(m.To), boolInt(m.AutoApproved), toMs(at), cur.ID, string(m.From))
	if err != nil {
		return fmt.Errorf("Transition update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.ConflictError{ID: cur.ID, Op: "transition", Status: cur.Status}
	}

	if m.Decision != nil {
		decided, err := exists(ctx, tx, `SELECT 1 FROM decision_records WHERE request_id = ?;`, cur.ID)
		if err != nil {
			return fmt.Errorf("Transition decision check: %w", err)
		}
		if decided {
			return &types.ConflictError{ID: cur.ID, Op: "decide", Status: cur.Status, Reason: "already decided"}
		}
		d := m.Decision
		if _, err := tx.ExecContext(ctx, `
INSERT INTO decision_records(decision_id, request_id, actor_id, actor_role, decision, note, decided_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
			d.ID, cur.ID, nullString(d.ActorID), string(d.ActorRole), string(d.Decision),
			nullString(d.Note), toMs(d.DecidedAt),
		); err != nil {
			return fmt.Errorf("Transition insert decision: %w", err)
		}
	}

	if m.OpenVisit != nil {
		if v != nil {
			return &types.ConflictError{ID: cur.ID, Op: "checkin", Status: cur.Status, Reason: "visit already exists"}
		}
		ov := m.OpenVisit
		if _, err := tx.ExecContext(ctx, `
INSERT INTO visits(visit_id, request_id, checkin_guard_id, checkin_method, notes, checkin_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`,
			ov.ID, cur.ID, ov.CheckinGuardID, ov.CheckinMethod, nullString(ov.Notes), toMs(ov.CheckinAt),
		); err != nil {
			return fmt.Errorf("Transition insert visit: %w", err)
		}
	}

	if m.CloseVisit != nil {
		res, err := tx.ExecContext(ctx, `
UPDATE visits SET checkout_guard_id = ?, checkout_at_ms = ?
WHERE request_id = ? AND checkout_at_ms IS NULL;`,
			m.CloseVisit.GuardID, toMs(m.CloseVisit.At), cur.ID)
		if err != nil {
			return fmt.Errorf("Transition close visit: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &types.ConflictError{ID: cur.ID, Op: "checkout", Status: cur.Status, Reason: "no open visit"}
		}
	}

	return insertAudit(ctx, tx, m.Audit)
}

func (s *AccessRequestStore) Get(ctx context.Context, id string) (types.AccessRequest, error) {
	return getRequest(ctx, s.db, id)
}

func (s *AccessRequestStore) GetByQRCode(ctx context.Context, code string) (types.AccessRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE qr_code = ?;`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessRequest{}, types.NotFound("qr_code", code)
	}
	return r, err
}

func (s *AccessRequestStore) GetByAccessCode(ctx context.Context, code string) (types.AccessRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE upper(access_code) = upper(?);`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessRequest{}, types.NotFound("access_code", code)
	}
	return r, err
}

func (s *AccessRequestStore) GetVisit(ctx context.Context, requestID string) (types.Visit, error) {
	v, err := getVisit(ctx, s.db, requestID)
	if err != nil {
		return types.Visit{}, err
	}
	if v == nil {
		return types.Visit{}, types.NotFound("visit", requestID)
	}
	return *v, nil
}

func (s *AccessRequestStore) Decisions(ctx context.Context, requestID string) ([]types.DecisionRecord, error) {
	if _, err := getRequest(ctx, s.db, requestID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT decision_id, request_id, actor_id, actor_role, decision, note, decided_at_ms
FROM decision_records WHERE request_id = ? ORDER BY decided_at_ms, decision_id;`, requestID)
	if err != nil {
		return nil, fmt.Errorf("Decisions query: %w", err)
	}
	defer rows.Close()

	var out []types.DecisionRecord
	for rows.Next() {
		var (
			d        types.DecisionRecord
			actorID  sql.NullString
			role     string
			decision string
			note     sql.NullString
			at       int64
		)
		if err := rows.Scan(&d.ID, &d.RequestID, &actorID, &role, &decision, &note, &at); err != nil {
			return nil, fmt.Errorf("Decisions scan: %w", err)
		}
		d.ActorID = actorID.String
		d.ActorRole = types.Role(role)
		d.Decision = types.Decision(decision)
		d.Note = note.String
		d.DecidedAt = fromMs(at)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *AccessRequestStore) ListPendingByFlat(ctx context.Context, flatID string) ([]types.AccessRequest, error) {
	return listRequests(ctx, s.db, `
SELECT `+requestColumns+` FROM access_requests
WHERE flat_id = ? AND status = 'pending' AND qr_code IS NULL AND access_code IS NULL
ORDER BY created_at_ms, request_id;`, flatID)
}

func (s *AccessRequestStore) CountPendingByFlat(ctx context.Context, flatID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM access_requests
WHERE flat_id = ? AND status = 'pending' AND qr_code IS NULL AND access_code IS NULL;`, flatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountPendingByFlat: %w", err)
	}
	return n, nil
}

func (s *AccessRequestStore) ListExpected(ctx context.Context, societyID string, at time.Time) ([]types.AccessRequest, error) {
	return listRequests(ctx, s.db, `
SELECT `+requestColumns+` FROM access_requests
WHERE society_id = ?
  AND (qr_code IS NOT NULL OR access_code IS NOT NULL)
  AND status IN ('pending', 'accepted')
  AND (expected_end_ms IS NULL OR expected_end_ms >= ?)
ORDER BY COALESCE(expected_start_ms, created_at_ms), request_id;`, societyID, toMs(at))
}

func (s *AccessRequestStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]types.AccessRequest, error) {
	if limit <= 0 {
		limit = -1
	}
	return listRequests(ctx, s.db, `
SELECT `+requestColumns+` FROM access_requests
WHERE status = 'pending' AND approval_deadline_ms IS NOT NULL AND approval_deadline_ms <= ?
ORDER BY approval_deadline_ms, request_id
LIMIT ?;`, toMs(now), limit)
}

func (s *AccessRequestStore) PurgeDenied(ctx context.Context, societyID string, audit types.AuditEntry) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// decision_records go with their request via ON DELETE CASCADE.
		res, err := tx.ExecContext(ctx,
			`DELETE FROM access_requests WHERE society_id = ? AND status = 'denied';`, societyID)
		if err != nil {
			return fmt.Errorf("PurgeDenied delete: %w", err)
		}
		n, _ = res.RowsAffected()
		if n == 0 {
			return nil
		}
		if audit.Payload == nil {
			audit.Payload = map[string]any{}
		}
		audit.Payload["deleted"] = n
		return insertAudit(ctx, tx, audit)
	})
	return n, err
}

func getRequest(ctx context.Context, q querier, id string) (types.AccessRequest, error) {
	r, err := scanRequest(q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE request_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessRequest{}, types.NotFound("access_request", id)
	}
	if err != nil {
		return types.AccessRequest{}, fmt.Errorf("get access_request %s: %w", id, err)
	}
	return r, nil
}

func getVisit(ctx context.Context, q querier, requestID string) (*types.Visit, error) {
	var (
		v          types.Visit
		notes      sql.NullString
		checkin    int64
		outGuard   sql.NullString
		checkoutMs sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE request_id = ?;`, requestID).
		Scan(&v.ID, &v.RequestID, &v.CheckinGuardID, &v.CheckinMethod, &notes, &checkin, &outGuard, &checkoutMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get visit %s: %w", requestID, err)
	}
	v.Notes = notes.String
	v.CheckinAt = fromMs(checkin)
	v.CheckoutGuardID = outGuard.String
	v.CheckoutAt = fromNullMs(checkoutMs)
	return &v, nil
}

func listRequests(ctx context.Context, q querier, query string, args ...any) ([]types.AccessRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access_requests: %w", err)
	}
	defer rows.Close()

	var out []types.AccessRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access_request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (types.AccessRequest, error) {
	var (
		r                         types.AccessRequest
		idType, idNumber, vehicle sql.NullString
		qr, code, key             sql.NullString
		start, end, deadline      sql.NullInt64
		role, status              string
		auto                      int
		createdMs, updatedMs      int64
	)
	if err := row.Scan(
		&r.ID, &r.VisitorName, &r.Phone, &idType, &idNumber, &vehicle, &r.Purpose,
		&r.NumberOfPeople, &r.FlatID, &r.SocietyID, &r.InviterID, &role,
		&qr, &code, &start, &end, &status,
		&deadline, &auto, &key, &createdMs, &updatedMs,
	); err != nil {
		return types.AccessRequest{}, err
	}
	r.IDType = idType.String
	r.IDNumber = idNumber.String
	r.VehicleNo = vehicle.String
	r.InviterRole = types.Role(role)
	r.QRCode = qr.String
	r.AccessCode = code.String
	r.ExpectedStart = fromNullMs(start)
	r.ExpectedEnd = fromNullMs(end)
	r.Status = types.Status(status)
	r.Deadline = fromNullMs(deadline)
	r.AutoApproved = auto != 0
	r.IdempotencyKey = key.String
	r.CreatedAt = fromMs(createdMs)
	r.UpdatedAt = fromMs(updatedMs)
	return r, nil
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// openTestDB returns a private in-memory database with the production
// schema, closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenMemory(context.Background(), name)
	require.NoError(t, err, "openTestDB")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return w
}

// seedDirectory inserts society S-1 with flats F-101 (resident-1) and
// F-102, and guard-1.
func seedDirectory(t *testing.T, w *db.Worker) {
	t.Helper()
	require.NoError(t, db.SeedDev(context.Background(), w, db.DefaultSeed))
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newRequest(flat string) types.AccessRequest {
	deadline := baseTime.Add(5 * time.Minute)
	return types.AccessRequest{
		ID:             uuid.NewString(),
		VisitorName:    "Raj Kumar",
		Phone:          "+911234567890",
		NumberOfPeople: 1,
		FlatID:         flat,
		SocietyID:      "S-1",
		InviterID:      "guard-1",
		InviterRole:    types.RoleGuard,
		Status:         types.StatusPending,
		Deadline:       &deadline,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
	}
}

func newPass(flat, qr, code string) types.AccessRequest {
	r := newRequest(flat)
	r.Deadline = nil
	r.QRCode = qr
	r.AccessCode = code
	r.InviterID = "resident-1"
	r.InviterRole = types.RoleResident
	return r
}

func audit(action, id string) types.AuditEntry {
	return types.AuditEntry{
		ActorID: "tester", ActorRole: types.RoleGuard,
		Action: action, ResourceType: "access_request", ResourceID: id, CreatedAt: baseTime,
	}
}

// decideFn moves a pending request to accepted/denied with one decision.
func decideFn(d types.Decision, actor types.Actor) store.TransitionFn {
	return func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		if cur.Status != types.StatusPending {
			return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "decide", Status: cur.Status}
		}
		to := types.StatusAccepted
		if d == types.DecisionDeny {
			to = types.StatusDenied
		}
		return store.Mutation{
			From: types.StatusPending,
			To:   to,
			Decision: &types.DecisionRecord{
				ID: uuid.NewString(), ActorID: actor.ID, ActorRole: actor.Role,
				Decision: d, DecidedAt: baseTime.Add(time.Minute),
			},
			Audit: audit("visitor_"+string(d), cur.ID),
			At:    baseTime.Add(time.Minute),
		}, nil
	}
}

func checkinFn(guard string) store.TransitionFn {
	return func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		return store.Mutation{
			From: types.StatusAccepted,
			To:   types.StatusCheckedIn,
			OpenVisit: &types.Visit{
				ID: uuid.NewString(), CheckinGuardID: guard, CheckinMethod: "manual",
				CheckinAt: baseTime.Add(2 * time.Minute),
			},
			Audit: audit("visitor_checkin", cur.ID),
			At:    baseTime.Add(2 * time.Minute),
		}, nil
	}
}

func checkoutFn(guard string) store.TransitionFn {
	return func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		return store.Mutation{
			From:       types.StatusCheckedIn,
			To:         types.StatusCheckedOut,
			CloseVisit: &store.VisitClose{GuardID: guard, At: baseTime.Add(time.Hour)},
			Audit:      audit("visitor_checkout", cur.ID),
			At:         baseTime.Add(time.Hour),
		}, nil
	}
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&n))
	return n
}

package sqlite_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	sqlitestore "github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/sqlite"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

func newStore(t *testing.T) (*sqlitestore.AccessRequestStore, func(string, ...any) int) {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDirectory(t, w)
	return sqlitestore.NewAccessRequestStore(conn, w), func(q string, args ...any) int {
		return countRows(t, conn, q, args...)
	}
}

// ── Create ───────────────────────────────────────────────────────────────────

func TestAccessRequestStore_Create_RoundTrip(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()

	req := newRequest("F-101")
	req.VehicleNo = "KA01AB1234"
	got, created, err := s.Create(ctx, req, audit("visitor_create", req.ID))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, "KA01AB1234", got.VehicleNo)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(baseTime.Add(5*time.Minute)))
	assert.Nil(t, got.ExpectedStart)

	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM audit_logs WHERE resource_id = ?`, req.ID))
}

func TestAccessRequestStore_Create_IdempotencyKeyReturnsOriginal(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()

	first := newRequest("F-101")
	first.IdempotencyKey = "idem-1"
	a, created, err := s.Create(ctx, first, audit("visitor_create", first.ID))
	require.NoError(t, err)
	require.True(t, created)

	second := newRequest("F-101")
	second.IdempotencyKey = "idem-1"
	b, created, err := s.Create(ctx, second, audit("visitor_create", second.ID))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM access_requests`))
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM audit_logs`))
}

func TestAccessRequestStore_Create_DuplicateCodes(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	p := newPass("F-101", "QR-1", "ABC234")
	_, _, err := s.Create(ctx, p, audit("guest_pass_create", p.ID))
	require.NoError(t, err)

	dupQR := newPass("F-101", "QR-1", "XYZ789")
	_, _, err = s.Create(ctx, dupQR, audit("guest_pass_create", dupQR.ID))
	assert.ErrorIs(t, err, store.ErrDuplicateQRCode)

	dupCode := newPass("F-101", "QR-2", "abc234")
	_, _, err = s.Create(ctx, dupCode, audit("guest_pass_create", dupCode.ID))
	assert.ErrorIs(t, err, store.ErrDuplicateAccessCode)
}

func TestAccessRequestStore_Create_CodesShareNamespace(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()

	p := newPass("F-101", "QR-1", "ABC234")
	_, _, err := s.Create(ctx, p, audit("guest_pass_create", p.ID))
	require.NoError(t, err)

	qrShadowsCode := newPass("F-101", "abc234", "XYZ789")
	_, _, err = s.Create(ctx, qrShadowsCode, audit("guest_pass_create", qrShadowsCode.ID))
	assert.ErrorIs(t, err, store.ErrDuplicateQRCode)

	codeShadowsQR := newPass("F-101", "QR-3", "qr-1")
	_, _, err = s.Create(ctx, codeShadowsQR, audit("guest_pass_create", codeShadowsQR.ID))
	assert.ErrorIs(t, err, store.ErrDuplicateAccessCode)

	got, err := s.GetByAccessCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM access_requests`))
}

func TestAccessRequestStore_Create_UnknownFlatRejected(t *testing.T) {
	s, _ := newStore(t)
	req := newRequest("F-999")
	_, _, err := s.Create(context.Background(), req, audit("visitor_create", req.ID))
	assert.Error(t, err, "foreign key on flat_id")
}

// ── Lookups ──────────────────────────────────────────────────────────────────

func TestAccessRequestStore_Lookups(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	p := newPass("F-101", "QR-9", "HJK456")
	_, _, err := s.Create(ctx, p, audit("guest_pass_create", p.ID))
	require.NoError(t, err)

	byQR, err := s.GetByQRCode(ctx, "QR-9")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byQR.ID)

	byCode, err := s.GetByAccessCode(ctx, "hjk456")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byCode.ID)

	_, err = s.GetByAccessCode(ctx, "NOPE00")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAccessRequestStore_ListPendingByFlat_LiveOnly(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	live := newRequest("F-101")
	pass := newPass("F-101", "QR-L", "LMN234")
	other := newRequest("F-102")
	for _, r := range []types.AccessRequest{live, pass, other} {
		_, _, err := s.Create(ctx, r, audit("create", r.ID))
		require.NoError(t, err)
	}

	got, err := s.ListPendingByFlat(ctx, "F-101")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, live.ID, got[0].ID)

	n, err := s.CountPendingByFlat(ctx, "F-101")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccessRequestStore_ListExpiredPending(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	due := newRequest("F-101")
	notDue := newRequest("F-101")
	later := baseTime.Add(time.Hour)
	notDue.Deadline = &later
	pass := newPass("F-101", "QR-E", "EFG234")
	for _, r := range []types.AccessRequest{due, notDue, pass} {
		_, _, err := s.Create(ctx, r, audit("create", r.ID))
		require.NoError(t, err)
	}

	got, err := s.ListExpiredPending(ctx, baseTime.Add(6*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestAccessRequestStore_ListExpected(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	start := baseTime
	end := baseTime.Add(2 * time.Hour)
	current := newPass("F-101", "QR-C", "CCC234")
	current.ExpectedStart, current.ExpectedEnd = &start, &end

	pastEnd := baseTime.Add(-time.Hour)
	pastStart := baseTime.Add(-2 * time.Hour)
	expired := newPass("F-102", "QR-X", "XXX234")
	expired.ExpectedStart, expired.ExpectedEnd = &pastStart, &pastEnd

	for _, r := range []types.AccessRequest{current, expired, newRequest("F-101")} {
		_, _, err := s.Create(ctx, r, audit("create", r.ID))
		require.NoError(t, err)
	}

	got, err := s.ListExpected(ctx, "S-1", baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, current.ID, got[0].ID)
}

// ── Transition ───────────────────────────────────────────────────────────────

func TestAccessRequestStore_FullLifecycle(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()
	guard := types.Actor{ID: "guard-1", Role: types.RoleGuard}
	resident := types.Actor{ID: "resident-1", Role: types.RoleResident}

	req := newRequest("F-101")
	_, _, err := s.Create(ctx, req, audit("create", req.ID))
	require.NoError(t, err)

	got, visit, err := s.Transition(ctx, req.ID, decideFn(types.DecisionApprove, resident))
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccepted, got.Status)
	assert.Nil(t, visit)

	got, visit, err = s.Transition(ctx, req.ID, checkinFn(guard.ID))
	require.NoError(t, err)
	assert.Equal(t, types.StatusCheckedIn, got.Status)
	require.NotNil(t, visit)
	assert.True(t, visit.Open())

	got, visit, err = s.Transition(ctx, req.ID, checkoutFn(guard.ID))
	require.NoError(t, err)
	assert.Equal(t, types.StatusCheckedOut, got.Status)
	require.NotNil(t, visit.CheckoutAt)
	assert.Equal(t, "guard-1", visit.CheckoutGuardID)

	ds, err := s.Decisions(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, types.DecisionApprove, ds[0].Decision)
	assert.Equal(t, "resident-1", ds[0].ActorID)

	// create + approve + checkin + checkout
	assert.Equal(t, 4, count(`SELECT COUNT(*) FROM audit_logs WHERE resource_id = ?`, req.ID))

	_, _, err = s.Transition(ctx, req.ID, checkinFn(guard.ID))
	var ce *types.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, types.StatusCheckedOut, ce.Status)
}

func TestAccessRequestStore_CheckoutWithoutCheckin_Conflict(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	req := newRequest("F-101")
	_, _, err := s.Create(ctx, req, audit("create", req.ID))
	require.NoError(t, err)
	_, _, err = s.Transition(ctx, req.ID, decideFn(types.DecisionApprove, types.Actor{ID: "resident-1", Role: types.RoleResident}))
	require.NoError(t, err)

	_, _, err = s.Transition(ctx, req.ID, checkoutFn("guard-1"))
	assert.ErrorIs(t, err, types.ErrConflict)

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccepted, got.Status, "rolled back")
}

func TestAccessRequestStore_ConcurrentDecisions_ExactlyOneWins(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()

	req := newRequest("F-101")
	_, _, err := s.Create(ctx, req, audit("create", req.ID))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 10; i++ {
		d := types.DecisionApprove
		if i%2 == 1 {
			d = types.DecisionDeny
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Transition(ctx, req.ID, decideFn(d, types.Actor{ID: "guard-1", Role: types.RoleGuard}))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, types.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 9, conflicts.Load())
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM decision_records WHERE request_id = ?`, req.ID))
}

func TestAccessRequestStore_FnErrorAborts(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()

	req := newRequest("F-101")
	_, _, err := s.Create(ctx, req, audit("create", req.ID))
	require.NoError(t, err)

	_, _, err = s.Transition(ctx, req.ID, func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		return store.Mutation{}, types.Invalid("decision", "bad")
	})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM audit_logs`))
}

// ── PurgeDenied ──────────────────────────────────────────────────────────────

func TestAccessRequestStore_PurgeDenied(t *testing.T) {
	s, count := newStore(t)
	ctx := context.Background()
	guard := types.Actor{ID: "guard-1", Role: types.RoleGuard}

	denied := newRequest("F-101")
	kept := newRequest("F-102")
	for _, r := range []types.AccessRequest{denied, kept} {
		_, _, err := s.Create(ctx, r, audit("create", r.ID))
		require.NoError(t, err)
	}
	_, _, err := s.Transition(ctx, denied.ID, decideFn(types.DecisionDeny, guard))
	require.NoError(t, err)

	n, err := s.PurgeDenied(ctx, "S-1", audit("visitors_purge_denied", "S-1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, denied.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.Get(ctx, kept.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, count(`SELECT COUNT(*) FROM decision_records`))
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM audit_logs WHERE action = 'visitors_purge_denied'`))

	n, err = s.PurgeDenied(ctx, "S-1", audit("visitors_purge_denied", "S-1"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

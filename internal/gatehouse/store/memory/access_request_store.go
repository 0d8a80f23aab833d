package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// AccessRequestStore keeps the lifecycle in maps guarded by one mutex, which
// plays the part of the sqlite write transaction. Intended for tests and dev.
type AccessRequestStore struct {
	mu        sync.Mutex
	requests  map[string]types.AccessRequest
	order     []string
	byKey     map[string]string
	byQR      map[string]string
	byCode    map[string]string // upper-cased access code
	visits    map[string]types.Visit
	decisions map[string][]types.DecisionRecord
	audit     []types.AuditEntry
}

func NewAccessRequestStore() *AccessRequestStore {
	return &AccessRequestStore{
		requests:  make(map[string]types.AccessRequest),
		byKey:     make(map[string]string),
		byQR:      make(map[string]string),
		byCode:    make(map[string]string),
		visits:    make(map[string]types.Visit),
		decisions: make(map[string][]types.DecisionRecord),
	}
}

func (s *AccessRequestStore) Create(_ context.Context, req types.AccessRequest, audit types.AuditEntry) (types.AccessRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := s.byKey[req.IdempotencyKey]; ok {
			return cloneRequest(s.requests[id]), false, nil
		}
	}
	// qr codes and access codes share one lookup namespace at the gate.
	if req.QRCode != "" {
		_, qr := s.byQR[req.QRCode]
		_, code := s.byCode[strings.ToUpper(req.QRCode)]
		if qr || code {
			return types.AccessRequest{}, false, store.ErrDuplicateQRCode
		}
	}
	code := strings.ToUpper(req.AccessCode)
	if code != "" {
		if _, ok := s.byCode[code]; ok || s.qrMatchesFold(code) {
			return types.AccessRequest{}, false, store.ErrDuplicateAccessCode
		}
	}

	req = cloneRequest(req)
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	if req.IdempotencyKey != "" {
		s.byKey[req.IdempotencyKey] = req.ID
	}
	if req.QRCode != "" {
		s.byQR[req.QRCode] = req.ID
	}
	if code != "" {
		s.byCode[code] = req.ID
	}
	s.audit = append(s.audit, audit)

	return cloneRequest(req), true, nil
}

func (s *AccessRequestStore) qrMatchesFold(code string) bool {
	for qr := range s.byQR {
		if strings.EqualFold(qr, code) {
			return true
		}
	}
	return false
}

func (s *AccessRequestStore) Transition(_ context.Context, id string, fn store.TransitionFn) (types.AccessRequest, *types.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.requests[id]
	if !ok {
		return types.AccessRequest{}, nil, types.NotFound("access_request", id)
	}
	var visit *types.Visit
	if v, ok := s.visits[id]; ok {
		visit = cloneVisit(&v)
	}

	m, err := fn(cloneRequest(cur), visit)
	if err != nil {
		return types.AccessRequest{}, nil, err
	}
	if cur.Status != m.From {
		return types.AccessRequest{}, nil, &types.ConflictError{ID: id, Op: "transition", Status: cur.Status}
	}
	if m.Decision != nil && len(s.decisions[id]) > 0 {
		return types.AccessRequest{}, nil, &types.ConflictError{ID: id, Op: "decide", Status: cur.Status, Reason: "already decided"}
	}

	existing, hasVisit := s.visits[id]
	if m.OpenVisit != nil && hasVisit {
		return types.AccessRequest{}, nil, &types.ConflictError{ID: id, Op: "checkin", Status: cur.Status, Reason: "visit already exists"}
	}
	if m.CloseVisit != nil && (!hasVisit || !existing.Open()) {
		return types.AccessRequest{}, nil, &types.ConflictError{ID: id, Op: "checkout", Status: cur.Status, Reason: "no open visit"}
	}

	if m.OpenVisit != nil {
		v := *m.OpenVisit
		v.RequestID = id
		s.visits[id] = v
	}
	if m.CloseVisit != nil {
		at := m.CloseVisit.At
		existing.CheckoutAt = &at
		existing.CheckoutGuardID = m.CloseVisit.GuardID
		s.visits[id] = existing
	}
	if m.Decision != nil {
		d := *m.Decision
		d.RequestID = id
		s.decisions[id] = append(s.decisions[id], d)
	}

	cur.Status = m.To
	if m.AutoApproved {
		cur.AutoApproved = true
	}
	cur.UpdatedAt = m.At
	s.requests[id] = cur
	s.audit = append(s.audit, m.Audit)

	var out *types.Visit
	if v, ok := s.visits[id]; ok {
		out = cloneVisit(&v)
	}
	return cloneRequest(cur), out, nil
}

func (s *AccessRequestStore) Get(_ context.Context, id string) (types.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return types.AccessRequest{}, types.NotFound("access_request", id)
	}
	return cloneRequest(r), nil
}

func (s *AccessRequestStore) GetByQRCode(_ context.Context, code string) (types.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byQR[code]
	if !ok {
		return types.AccessRequest{}, types.NotFound("qr_code", code)
	}
	return cloneRequest(s.requests[id]), nil
}

func (s *AccessRequestStore) GetByAccessCode(_ context.Context, code string) (types.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return types.AccessRequest{}, types.NotFound("access_code", code)
	}
	return cloneRequest(s.requests[id]), nil
}

func (s *AccessRequestStore) GetVisit(_ context.Context, requestID string) (types.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[requestID]
	if !ok {
		return types.Visit{}, types.NotFound("visit", requestID)
	}
	return *cloneVisit(&v), nil
}

func (s *AccessRequestStore) Decisions(_ context.Context, requestID string) ([]types.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return nil, types.NotFound("access_request", requestID)
	}
	out := make([]types.DecisionRecord, len(s.decisions[requestID]))
	copy(out, s.decisions[requestID])
	return out, nil
}

func (s *AccessRequestStore) ListPendingByFlat(_ context.Context, flatID string) ([]types.AccessRequest, error) {
	return s.filter(func(r types.AccessRequest) bool {
		return r.FlatID == flatID && r.Status == types.StatusPending && !r.PreAuthorized()
	}), nil
}

func (s *AccessRequestStore) CountPendingByFlat(ctx context.Context, flatID string) (int, error) {
	rs, _ := s.ListPendingByFlat(ctx, flatID)
	return len(rs), nil
}

func (s *AccessRequestStore) ListExpected(_ context.Context, societyID string, at time.Time) ([]types.AccessRequest, error) {
	out := s.filter(func(r types.AccessRequest) bool {
		if r.SocietyID != societyID || !r.PreAuthorized() {
			return false
		}
		if r.Status != types.StatusPending && r.Status != types.StatusAccepted {
			return false
		}
		return r.ExpectedEnd == nil || !r.ExpectedEnd.Before(at)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return startOf(out[i]).Before(startOf(out[j]))
	})
	return out, nil
}

func (s *AccessRequestStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]types.AccessRequest, error) {
	out := s.filter(func(r types.AccessRequest) bool {
		return r.Status == types.StatusPending && r.Deadline != nil && !r.Deadline.After(now)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(*out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AccessRequestStore) PurgeDenied(_ context.Context, societyID string, audit types.AuditEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		r := s.requests[id]
		if r.SocietyID != societyID || r.Status != types.StatusDenied {
			kept = append(kept, id)
			continue
		}
		delete(s.requests, id)
		delete(s.decisions, id)
		if r.IdempotencyKey != "" {
			delete(s.byKey, r.IdempotencyKey)
		}
		if r.QRCode != "" {
			delete(s.byQR, r.QRCode)
		}
		if r.AccessCode != "" {
			delete(s.byCode, strings.ToUpper(r.AccessCode))
		}
		n++
	}
	s.order = kept
	if n > 0 {
		s.audit = append(s.audit, audit)
	}
	return n, nil
}

// Audit returns a copy of the audit trail. Test-only helper.
func (s *AccessRequestStore) Audit() []types.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *AccessRequestStore) filter(keep func(types.AccessRequest) bool) []types.AccessRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.AccessRequest
	for _, id := range s.order {
		if r := s.requests[id]; keep(r) {
			out = append(out, cloneRequest(r))
		}
	}
	return out
}

func startOf(r types.AccessRequest) time.Time {
	if r.ExpectedStart != nil {
		return *r.ExpectedStart
	}
	return r.CreatedAt
}

func cloneRequest(r types.AccessRequest) types.AccessRequest {
	r.ExpectedStart = cloneTime(r.ExpectedStart)
	r.ExpectedEnd = cloneTime(r.ExpectedEnd)
	r.Deadline = cloneTime(r.Deadline)
	return r
}

func cloneVisit(v *types.Visit) *types.Visit {
	c := *v
	c.CheckoutAt = cloneTime(v.CheckoutAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

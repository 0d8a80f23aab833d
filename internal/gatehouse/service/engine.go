package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Notifier receives every committed lifecycle event. Notify must not block;
// delivery failures stay on the notifier's side.
type Notifier interface {
	Notify(ev types.Event)
}

type EngineConfig struct {
	// ApprovalWindow is how long a manual request may stay pending before
	// the timeout scheduler denies it. Defaults to 5 minutes.
	ApprovalWindow time.Duration

	Now           func() time.Time
	NewID         func() string
	NewAccessCode func() (string, error)
}

// Engine is the only path that changes an access request.
type Engine struct {
	requests store.AccessRequestStore
	dir      store.Directory
	notifier Notifier
	logger   *zap.Logger

	window  time.Duration
	now     func() time.Time
	newID   func() string
	newCode func() (string, error)
}

func NewEngine(rs store.AccessRequestStore, dir store.Directory, n Notifier, logger *zap.Logger, cfg EngineConfig) *Engine {
	if cfg.ApprovalWindow <= 0 {
		cfg.ApprovalWindow = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.NewAccessCode == nil {
		cfg.NewAccessCode = NewAccessCode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		requests: rs,
		dir:      dir,
		notifier: n,
		logger:   logger.Named("engine"),
		window:   cfg.ApprovalWindow,
		now:      cfg.Now,
		newID:    cfg.NewID,
		newCode:  cfg.NewAccessCode,
	}
}

type NewRequest struct {
	VisitorName    string
	Phone          string
	IDType         string
	IDNumber       string
	VehicleNo      string
	Purpose        string
	NumberOfPeople int
	FlatID         string
	IdempotencyKey string
}

type NewPass struct {
	VisitorName    string
	Phone          string
	Purpose        string
	NumberOfPeople int
	FlatID         string
	QRCode         string
	ExpectedStart  *time.Time
	ExpectedEnd    *time.Time
	IdempotencyKey string
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

const maxAccessCodeAttempts = 10

// CreateRequest records a visitor waiting at the gate for a resident's
// decision. A replay with a known idempotency key returns the original with
// created=false and publishes nothing.
func (e *Engine) CreateRequest(ctx context.Context, actor types.Actor, in NewRequest) (types.AccessRequest, bool, error) {
	if err := requireActor(actor); err != nil {
		return types.AccessRequest{}, false, err
	}
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.FlatID = strings.TrimSpace(in.FlatID)
	if err := validateVisitor(in.VisitorName, in.Phone, in.FlatID, &in.NumberOfPeople); err != nil {
		return types.AccessRequest{}, false, err
	}

	society, err := e.dir.SocietyForFlat(ctx, in.FlatID)
	if err != nil {
		return types.AccessRequest{}, false, err
	}

	now := e.now()
	deadline := now.Add(e.window)
	req := types.AccessRequest{
		ID:             e.newID(),
		VisitorName:    in.VisitorName,
		Phone:          in.Phone,
		IDType:         strings.TrimSpace(in.IDType),
		IDNumber:       strings.TrimSpace(in.IDNumber),
		VehicleNo:      strings.TrimSpace(in.VehicleNo),
		Purpose:        strings.TrimSpace(in.Purpose),
		NumberOfPeople: in.NumberOfPeople,
		FlatID:         in.FlatID,
		SocietyID:      society,
		InviterID:      actor.ID,
		InviterRole:    actor.Role,
		Status:         types.StatusPending,
		Deadline:       &deadline,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	rec, created, err := e.requests.Create(ctx, req, auditEntry(actor, "visitor_create", req.ID, now, map[string]any{
		"flat_id":      req.FlatID,
		"visitor_name": req.VisitorName,
	}))
	if err != nil {
		return types.AccessRequest{}, false, fmt.Errorf("create access request: %w", err)
	}
	if !created {
		e.logger.Info("idempotent replay", zap.String("request_id", rec.ID), zap.String("idempotency_key", req.IdempotencyKey))
		return rec, false, nil
	}

	e.logger.Info("access request created",
		zap.String("request_id", rec.ID), zap.String("flat_id", rec.FlatID), zap.Time("deadline", deadline))
	e.publish(types.NewRequestEvent(types.EventRequestCreated, rec, now))
	return rec, true, nil
}

// CreatePass issues a resident's pre-authorized pass. The pass has no
// approval deadline; a guard redeems it at the gate within its window.
func (e *Engine) CreatePass(ctx context.Context, actor types.Actor, in NewPass) (types.AccessRequest, bool, error) {
	if err := requireActor(actor); err != nil {
		return types.AccessRequest{}, false, err
	}
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.FlatID = strings.TrimSpace(in.FlatID)
	in.QRCode = strings.TrimSpace(in.QRCode)
	if err := validateVisitor(in.VisitorName, in.Phone, in.FlatID, &in.NumberOfPeople); err != nil {
		return types.AccessRequest{}, false, err
	}

	now := e.now()
	if in.ExpectedStart == nil {
		in.ExpectedStart = &now
	}
	if in.ExpectedEnd != nil && in.ExpectedEnd.Before(*in.ExpectedStart) {
		return types.AccessRequest{}, false, types.Invalid("expected_end", "must not be before expected_start")
	}

	if actor.Role != types.RoleSocietyAdmin {
		ok, err := e.dir.IsResident(ctx, actor.ID, in.FlatID)
		if err != nil {
			return types.AccessRequest{}, false, err
		}
		if !ok {
			return types.AccessRequest{}, false, &types.ForbiddenError{Actor: actor, Action: "issue a pass for flat " + in.FlatID}
		}
	}

	society, err := e.dir.SocietyForFlat(ctx, in.FlatID)
	if err != nil {
		return types.AccessRequest{}, false, err
	}

	base := types.AccessRequest{
		VisitorName:    in.VisitorName,
		Phone:          in.Phone,
		Purpose:        defaultString(strings.TrimSpace(in.Purpose), "guest"),
		NumberOfPeople: in.NumberOfPeople,
		FlatID:         in.FlatID,
		SocietyID:      society,
		InviterID:      actor.ID,
		InviterRole:    actor.Role,
		QRCode:         in.QRCode,
		ExpectedStart:  in.ExpectedStart,
		ExpectedEnd:    in.ExpectedEnd,
		Status:         types.StatusPending,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; attempt < maxAccessCodeAttempts; attempt++ {
		code, err := e.newCode()
		if err != nil {
			return types.AccessRequest{}, false, fmt.Errorf("generate access code: %w", err)
		}
		req := base
		req.ID = e.newID()
		req.AccessCode = code

		rec, created, err := e.requests.Create(ctx, req, auditEntry(actor, "guest_pass_create", req.ID, now, map[string]any{
			"flat_id": req.FlatID,
			"qr_code": req.QRCode,
		}))
		switch {
		case errors.Is(err, store.ErrDuplicateAccessCode):
			continue
		case errors.Is(err, store.ErrDuplicateQRCode):
			return types.AccessRequest{}, false, &types.ConflictError{ID: in.QRCode, Op: "create pass", Status: types.StatusPending, Reason: "qr_code already exists"}
		case err != nil:
			return types.AccessRequest{}, false, fmt.Errorf("create pass: %w", err)
		}
		if created {
			e.logger.Info("guest pass created", zap.String("request_id", rec.ID), zap.String("flat_id", rec.FlatID))
			e.publish(types.NewRequestEvent(types.EventRequestCreated, rec, now))
		}
		return rec, created, nil
	}
	return types.AccessRequest{}, false, fmt.Errorf("create pass: no free access code after %d attempts", maxAccessCodeAttempts)
}

// Decide records a resident-style accept/deny. Residents of the flat, guards
// of its society and admins may decide; a pre-authorized pass is left to
// Redeem.
func (e *Engine) Decide(ctx context.Context, actor types.Actor, id string, d types.Decision, note string) (types.AccessRequest, error) {
	if err := requireActor(actor); err != nil {
		return types.AccessRequest{}, err
	}
	if err := validateDecision(d); err != nil {
		return types.AccessRequest{}, err
	}
	cur, err := e.requests.Get(ctx, id)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if actor.IsStaff() {
		if err := e.requireGuardOf(ctx, actor, cur.SocietyID, "decide for flat "+cur.FlatID); err != nil {
			return types.AccessRequest{}, err
		}
	} else {
		ok, err := e.dir.IsResident(ctx, actor.ID, cur.FlatID)
		if err != nil {
			return types.AccessRequest{}, err
		}
		if !ok {
			return types.AccessRequest{}, &types.ForbiddenError{Actor: actor, Action: "decide for flat " + cur.FlatID}
		}
	}

	return e.decide(ctx, id, decisionPlan{
		actor:    actor,
		decision: d,
		note:     strings.TrimSpace(note),
		action:   "visitor_" + string(d),
		op:       "respond",
	}, func(cur types.AccessRequest) error {
		if cur.PreAuthorized() && !actor.IsStaff() {
			return &types.ConflictError{ID: cur.ID, Op: "respond", Status: cur.Status, Reason: "pre-authorized pass awaits redemption at the gate"}
		}
		return nil
	})
}

// Override is a guard's forced decision. An approval bypasses the resident
// and is marked auto_approved.
func (e *Engine) Override(ctx context.Context, actor types.Actor, id string, d types.Decision, note string) (types.AccessRequest, error) {
	if err := validateDecision(d); err != nil {
		return types.AccessRequest{}, err
	}
	cur, err := e.requests.Get(ctx, id)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if err := e.requireGuardOf(ctx, actor, cur.SocietyID, "override a decision"); err != nil {
		return types.AccessRequest{}, err
	}

	return e.decide(ctx, id, decisionPlan{
		actor:    actor,
		decision: d,
		note:     strings.TrimSpace(note),
		auto:     true,
		action:   "visitor_override_" + string(d),
		op:       "guard-respond",
	}, nil)
}

// Redeem admits a pre-authorized pass by qr_code or access_code.
func (e *Engine) Redeem(ctx context.Context, actor types.Actor, code string) (types.AccessRequest, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.AccessRequest{}, types.Invalid("code", "is required")
	}
	pass, err := e.findByCode(ctx, code)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if err := e.requireGuardOf(ctx, actor, pass.SocietyID, "redeem a pass"); err != nil {
		return types.AccessRequest{}, err
	}

	return e.decide(ctx, pass.ID, decisionPlan{
		actor:    actor,
		decision: types.DecisionApprove,
		note:     "pass redeemed",
		auto:     true,
		action:   "pass_redeem",
		op:       "redeem",
	}, func(cur types.AccessRequest) error {
		if !cur.PreAuthorized() {
			return &types.ConflictError{ID: cur.ID, Op: "redeem", Status: cur.Status, Reason: "not a pre-authorized pass"}
		}
		if cur.Status != types.StatusPending {
			return &types.ConflictError{ID: cur.ID, Op: "redeem", Status: cur.Status}
		}
		return checkWindow(cur, e.now())
	})
}

// TimeoutDeny is the scheduler's forced denial of a request past its
// approval deadline.
func (e *Engine) TimeoutDeny(ctx context.Context, id string) (types.AccessRequest, error) {
	now := e.now()
	decisionID := e.newID()
	rec, _, err := e.requests.Transition(ctx, id, func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		return planTimeout(cur, decisionID, now)
	})
	if err != nil {
		return types.AccessRequest{}, err
	}

	e.logger.Info("access request timed out", zap.String("request_id", rec.ID), zap.String("flat_id", rec.FlatID))
	ev := types.NewRequestEvent(types.EventRequestTimedOut, rec, now)
	ev.Decision = types.DecisionDeny
	ev.DecidedBy = types.SystemActor.ID
	ev.DecidedRole = types.RoleSystem
	ev.Note = autoRejectNote
	e.publish(ev)
	return rec, nil
}

// CheckIn opens the visit of an accepted request.
func (e *Engine) CheckIn(ctx context.Context, actor types.Actor, id, method, note string) (types.AccessRequest, types.Visit, error) {
	method = defaultString(strings.TrimSpace(method), "manual")
	switch method {
	case "manual", "qr", "access_code":
	default:
		return types.AccessRequest{}, types.Visit{}, types.Invalid("checkin_method", "must be manual, qr or access_code")
	}
	cur, err := e.requests.Get(ctx, id)
	if err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}
	if err := e.requireGuardOf(ctx, actor, cur.SocietyID, "check in a visitor"); err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}

	now := e.now()
	visitID := e.newID()
	note = strings.TrimSpace(note)
	rec, visit, err := e.requests.Transition(ctx, id, func(cur types.AccessRequest, v *types.Visit) (store.Mutation, error) {
		return planCheckIn(cur, v, actor, method, note, visitID, now)
	})
	if err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}
	if visit == nil {
		return types.AccessRequest{}, types.Visit{}, fmt.Errorf("checkin %s: visit not recorded", id)
	}

	e.logger.Info("visitor checked in", zap.String("request_id", rec.ID), zap.String("visit_id", visit.ID))
	ev := types.NewRequestEvent(types.EventVisitorCheckedIn, rec, now)
	ev.VisitID = visit.ID
	ev.CheckinAt = &visit.CheckinAt
	e.publish(ev)
	return rec, *visit, nil
}

// CheckOut closes the open visit of a checked-in request.
func (e *Engine) CheckOut(ctx context.Context, actor types.Actor, id string) (types.AccessRequest, types.Visit, error) {
	cur, err := e.requests.Get(ctx, id)
	if err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}
	if err := e.requireGuardOf(ctx, actor, cur.SocietyID, "check out a visitor"); err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}

	now := e.now()
	rec, visit, err := e.requests.Transition(ctx, id, func(cur types.AccessRequest, v *types.Visit) (store.Mutation, error) {
		return planCheckOut(cur, v, actor, now)
	})
	if err != nil {
		return types.AccessRequest{}, types.Visit{}, err
	}
	if visit == nil {
		return types.AccessRequest{}, types.Visit{}, fmt.Errorf("checkout %s: visit not recorded", id)
	}

	e.logger.Info("visitor checked out", zap.String("request_id", rec.ID), zap.String("visit_id", visit.ID))
	ev := types.NewRequestEvent(types.EventVisitorCheckedOut, rec, now)
	ev.VisitID = visit.ID
	ev.CheckinAt = &visit.CheckinAt
	ev.CheckoutAt = visit.CheckoutAt
	e.publish(ev)
	return rec, *visit, nil
}

// PurgeDenied bulk-deletes a society's denied requests. Maintenance only.
func (e *Engine) PurgeDenied(ctx context.Context, actor types.Actor, societyID string) (int64, error) {
	societyID = strings.TrimSpace(societyID)
	if societyID == "" {
		return 0, types.Invalid("society_id", "is required")
	}
	if err := e.requireGuardOf(ctx, actor, societyID, "purge denied requests"); err != nil {
		return 0, err
	}

	now := e.now()
	n, err := e.requests.PurgeDenied(ctx, societyID, types.AuditEntry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       "visitors_purge_denied",
		ResourceType: "society",
		ResourceID:   societyID,
		CreatedAt:    now,
	})
	if err != nil {
		return 0, fmt.Errorf("purge denied: %w", err)
	}
	if n > 0 {
		e.logger.Info("denied requests purged", zap.String("society_id", societyID), zap.Int64("deleted", n))
		e.publish(types.Event{
			Type:      types.EventRequestsCleared,
			Status:    types.StatusDenied,
			SocietyID: societyID,
			Timestamp: now,
			Cleared:   n,
		})
	}
	return n, nil
}

// ── reads ───────────────────────────────────────────────────────────────────
// Reads apply the same actor checks as the writes: residents see their own
// flat, guards their own society, admins everything.

func (e *Engine) Get(ctx context.Context, actor types.Actor, id string) (types.AccessRequest, error) {
	r, err := e.requests.Get(ctx, id)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if err := e.requireViewer(ctx, actor, r, "view request "+id); err != nil {
		return types.AccessRequest{}, err
	}
	return r, nil
}

// LookupByCode resolves a gate code for a guard of the pass's society.
func (e *Engine) LookupByCode(ctx context.Context, actor types.Actor, code string) (types.AccessRequest, error) {
	if err := requireActor(actor); err != nil {
		return types.AccessRequest{}, err
	}
	pass, err := e.findByCode(ctx, code)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if err := e.requireGuardOf(ctx, actor, pass.SocietyID, "look up a pass"); err != nil {
		return types.AccessRequest{}, err
	}
	return pass, nil
}

func (e *Engine) PendingForFlat(ctx context.Context, actor types.Actor, flatID string) ([]types.AccessRequest, error) {
	flatID = strings.TrimSpace(flatID)
	if flatID == "" {
		return nil, types.Invalid("flat_id", "is required")
	}
	if err := e.requireFlatViewer(ctx, actor, flatID); err != nil {
		return nil, err
	}
	return e.requests.ListPendingByFlat(ctx, flatID)
}

func (e *Engine) PendingCount(ctx context.Context, actor types.Actor, flatID string) (int, error) {
	flatID = strings.TrimSpace(flatID)
	if flatID == "" {
		return 0, types.Invalid("flat_id", "is required")
	}
	if err := e.requireFlatViewer(ctx, actor, flatID); err != nil {
		return 0, err
	}
	return e.requests.CountPendingByFlat(ctx, flatID)
}

// Expected lists a society's passes that can still be redeemed.
func (e *Engine) Expected(ctx context.Context, actor types.Actor, societyID string) ([]types.AccessRequest, error) {
	societyID = strings.TrimSpace(societyID)
	if societyID == "" {
		return nil, types.Invalid("society_id", "is required")
	}
	if err := e.requireGuardOf(ctx, actor, societyID, "list expected visitors"); err != nil {
		return nil, err
	}
	return e.requests.ListExpected(ctx, societyID, e.now())
}

func (e *Engine) History(ctx context.Context, actor types.Actor, id string) ([]types.DecisionRecord, error) {
	if _, err := e.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return e.requests.Decisions(ctx, id)
}

func (e *Engine) Visit(ctx context.Context, actor types.Actor, requestID string) (types.Visit, error) {
	if _, err := e.Get(ctx, actor, requestID); err != nil {
		return types.Visit{}, err
	}
	return e.requests.GetVisit(ctx, requestID)
}

// ExpiredPending lists requests the scheduler should deny now.
func (e *Engine) ExpiredPending(ctx context.Context, limit int) ([]types.AccessRequest, error) {
	return e.requests.ListExpiredPending(ctx, e.now(), limit)
}

// ── helpers ─────────────────────────────────────────────────────────────────

// decide runs a pending-exit decision. guard, when set, is evaluated against
// the row inside the write transaction before the plan.
func (e *Engine) decide(ctx context.Context, id string, p decisionPlan, guard func(types.AccessRequest) error) (types.AccessRequest, error) {
	now := e.now()
	p.id = e.newID()
	rec, _, err := e.requests.Transition(ctx, id, func(cur types.AccessRequest, _ *types.Visit) (store.Mutation, error) {
		if guard != nil {
			if err := guard(cur); err != nil {
				return store.Mutation{}, err
			}
		}
		return planDecision(cur, p, now)
	})
	if err != nil {
		return types.AccessRequest{}, err
	}

	e.logger.Info("access request decided",
		zap.String("request_id", rec.ID),
		zap.String("decision", string(p.decision)),
		zap.String("actor", p.actor.ID),
		zap.String("role", string(p.actor.Role)),
		zap.String("status", string(rec.Status)))

	ev := types.NewRequestEvent(types.EventRequestDecided, rec, now)
	ev.Decision = p.decision
	ev.DecidedBy = p.actor.ID
	ev.DecidedRole = p.actor.Role
	ev.Note = p.note
	e.publish(ev)
	return rec, nil
}

func (e *Engine) publish(ev types.Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ev)
}

// findByCode resolves a qr_code first, then a case-insensitive access_code.
func (e *Engine) findByCode(ctx context.Context, code string) (types.AccessRequest, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.AccessRequest{}, types.Invalid("code", "is required")
	}
	r, err := e.requests.GetByQRCode(ctx, code)
	if err == nil || !errors.Is(err, types.ErrNotFound) {
		return r, err
	}
	r, err = e.requests.GetByAccessCode(ctx, code)
	if errors.Is(err, types.ErrNotFound) {
		return types.AccessRequest{}, types.NotFound("pass", code)
	}
	return r, err
}

// requireViewer admits admins, residents of r's flat and guards of r's
// society.
func (e *Engine) requireViewer(ctx context.Context, actor types.Actor, r types.AccessRequest, action string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.IsStaff() {
		return e.requireGuardOf(ctx, actor, r.SocietyID, action)
	}
	ok, err := e.dir.IsResident(ctx, actor.ID, r.FlatID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.ForbiddenError{Actor: actor, Action: action}
	}
	return nil
}

func (e *Engine) requireFlatViewer(ctx context.Context, actor types.Actor, flatID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	action := "view flat " + flatID
	switch actor.Role {
	case types.RoleSocietyAdmin:
		return nil
	case types.RoleGuard:
		society, err := e.dir.SocietyForFlat(ctx, flatID)
		if err != nil {
			return err
		}
		return e.requireGuardOf(ctx, actor, society, action)
	}
	ok, err := e.dir.IsResident(ctx, actor.ID, flatID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.ForbiddenError{Actor: actor, Action: action}
	}
	return nil
}

// requireGuardOf admits admins and guards posted to societyID.
func (e *Engine) requireGuardOf(ctx context.Context, actor types.Actor, societyID, action string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	switch actor.Role {
	case types.RoleSocietyAdmin:
		return nil
	case types.RoleGuard:
		ok, err := e.dir.IsGuard(ctx, actor.ID, societyID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return &types.ForbiddenError{Actor: actor, Action: action}
}

func requireActor(a types.Actor) error {
	if strings.TrimSpace(a.ID) == "" || !a.Role.Valid() {
		return types.Invalid("actor", "authenticated actor id and role are required")
	}
	if a.IsSystem() {
		return &types.ForbiddenError{Actor: a, Action: "act outside the scheduler"}
	}
	return nil
}

func validateVisitor(name, phone, flat string, people *int) error {
	switch {
	case name == "":
		return types.Invalid("visitor_name", "is required")
	case len(name) > 120:
		return types.Invalid("visitor_name", "is too long")
	case phone == "":
		return types.Invalid("phone", "is required")
	case !phonePattern.MatchString(phone):
		return types.Invalid("phone", "is not a phone number")
	case flat == "":
		return types.Invalid("flat_id", "is required")
	}
	if *people == 0 {
		*people = 1
	}
	if *people < 1 || *people > 50 {
		return types.Invalid("number_of_people", "must be between 1 and 50")
	}
	return nil
}

func validateDecision(d types.Decision) error {
	if d != types.DecisionApprove && d != types.DecisionDeny {
		return types.Invalid("decision", `must be "accept" or "deny"`)
	}
	return nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

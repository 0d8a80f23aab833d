package service

import (
	"time"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const autoRejectNote = "auto-rejected: no response within window"

// The plan* functions are the lifecycle guards. They run inside the store's
// write transaction against the row as it is at that moment, so a guard that
// passes can no longer be invalidated by a concurrent writer.

type decisionPlan struct {
	actor    types.Actor
	decision types.Decision
	note     string
	auto     bool   // approve bypasses the resident (override, pass)
	action   string // audit action
	op       string // conflict label
	id       string // decision record id
}

func planDecision(cur types.AccessRequest, p decisionPlan, now time.Time) (store.Mutation, error) {
	to := types.StatusAccepted
	if p.decision == types.DecisionDeny {
		to = types.StatusDenied
	}
	if cur.Status != types.StatusPending || !types.CanTransition(cur.Status, to) {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: p.op, Status: cur.Status}
	}

	return store.Mutation{
		From:         types.StatusPending,
		To:           to,
		AutoApproved: p.auto && to == types.StatusAccepted,
		Decision: &types.DecisionRecord{
			ID:        p.id,
			RequestID: cur.ID,
			ActorID:   p.actor.ID,
			ActorRole: p.actor.Role,
			Decision:  p.decision,
			Note:      p.note,
			DecidedAt: now,
		},
		Audit: auditEntry(p.actor, p.action, cur.ID, now, map[string]any{
			"decision": string(p.decision),
			"note":     p.note,
			"flat_id":  cur.FlatID,
		}),
		At: now,
	}, nil
}

// checkWindow rejects a pass outside [ExpectedStart, ExpectedEnd]. Both
// bounds are inclusive; a nil bound is open.
func checkWindow(cur types.AccessRequest, now time.Time) error {
	if cur.ExpectedStart != nil && now.Before(*cur.ExpectedStart) {
		return &types.WindowError{Reason: types.ErrNotYetValid, Start: cur.ExpectedStart, End: cur.ExpectedEnd, At: now}
	}
	if cur.ExpectedEnd != nil && now.After(*cur.ExpectedEnd) {
		return &types.WindowError{Reason: types.ErrExpired, Start: cur.ExpectedStart, End: cur.ExpectedEnd, At: now}
	}
	return nil
}

func planTimeout(cur types.AccessRequest, id string, now time.Time) (store.Mutation, error) {
	if cur.Status != types.StatusPending {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "timeout", Status: cur.Status}
	}
	if cur.Deadline == nil {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "timeout", Status: cur.Status, Reason: "no approval deadline"}
	}
	if cur.Deadline.After(now) {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "timeout", Status: cur.Status, Reason: "deadline not reached"}
	}
	return planDecision(cur, decisionPlan{
		actor:    types.SystemActor,
		decision: types.DecisionDeny,
		note:     autoRejectNote,
		action:   "visitor_auto_reject",
		op:       "timeout",
		id:       id,
	}, now)
}

func planCheckIn(cur types.AccessRequest, visit *types.Visit, actor types.Actor, method, note, visitID string, now time.Time) (store.Mutation, error) {
	if !types.CanTransition(cur.Status, types.StatusCheckedIn) {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "checkin", Status: cur.Status}
	}
	if visit != nil {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "checkin", Status: cur.Status, Reason: "already checked in"}
	}
	return store.Mutation{
		From: types.StatusAccepted,
		To:   types.StatusCheckedIn,
		OpenVisit: &types.Visit{
			ID:             visitID,
			RequestID:      cur.ID,
			CheckinGuardID: actor.ID,
			CheckinMethod:  method,
			Notes:          note,
			CheckinAt:      now,
		},
		Audit: auditEntry(actor, "visitor_checkin", cur.ID, now, map[string]any{
			"visit_id": visitID,
			"method":   method,
		}),
		At: now,
	}, nil
}

func planCheckOut(cur types.AccessRequest, visit *types.Visit, actor types.Actor, now time.Time) (store.Mutation, error) {
	if !types.CanTransition(cur.Status, types.StatusCheckedOut) {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "checkout", Status: cur.Status}
	}
	if visit == nil || !visit.Open() {
		return store.Mutation{}, &types.ConflictError{ID: cur.ID, Op: "checkout", Status: cur.Status, Reason: "no open visit"}
	}
	return store.Mutation{
		From:       types.StatusCheckedIn,
		To:         types.StatusCheckedOut,
		CloseVisit: &store.VisitClose{GuardID: actor.ID, At: now},
		Audit: auditEntry(actor, "visitor_checkout", cur.ID, now, map[string]any{
			"visit_id": visit.ID,
		}),
		At: now,
	}, nil
}

func auditEntry(actor types.Actor, action, requestID string, now time.Time, payload map[string]any) types.AuditEntry {
	return types.AuditEntry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: "access_request",
		ResourceID:   requestID,
		Payload:      payload,
		CreatedAt:    now,
	}
}

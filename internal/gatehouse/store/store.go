package store

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

var (
	ErrDuplicateQRCode     = errors.New("qr_code already exists")
	ErrDuplicateAccessCode = errors.New("access_code already exists")
)

// VisitClose closes the open visit of a request.
type VisitClose struct {
	GuardID string
	At      time.Time
}

// Mutation is everything one lifecycle transition writes. Stores apply it in
// a single transaction and only while the request is still in From.
type Mutation struct {
	From         types.Status
	To           types.Status
	AutoApproved bool
	Decision     *types.DecisionRecord
	OpenVisit    *types.Visit
	CloseVisit   *VisitClose
	Audit        types.AuditEntry
	At           time.Time
}

// TransitionFn inspects the current row (and its visit, when one exists)
// inside the write transaction and returns the mutation to apply, or an
// error to abort without writing.
type TransitionFn func(cur types.AccessRequest, visit *types.Visit) (Mutation, error)

type AccessRequestStore interface {
	// Create inserts req. When req.IdempotencyKey matches an existing row,
	// that row is returned with created=false and nothing is written.
	Create(ctx context.Context, req types.AccessRequest, audit types.AuditEntry) (rec types.AccessRequest, created bool, err error)
	Transition(ctx context.Context, id string, fn TransitionFn) (types.AccessRequest, *types.Visit, error)

	Get(ctx context.Context, id string) (types.AccessRequest, error)
	GetByQRCode(ctx context.Context, code string) (types.AccessRequest, error)
	// GetByAccessCode matches case-insensitively.
	GetByAccessCode(ctx context.Context, code string) (types.AccessRequest, error)
	GetVisit(ctx context.Context, requestID string) (types.Visit, error)
	Decisions(ctx context.Context, requestID string) ([]types.DecisionRecord, error)

	// ListPendingByFlat returns live requests awaiting a resident: pending and
	// not a pre-authorized pass, oldest first.
	ListPendingByFlat(ctx context.Context, flatID string) ([]types.AccessRequest, error)
	CountPendingByFlat(ctx context.Context, flatID string) (int, error)
	// ListExpected returns a society's pre-authorized passes that are pending
	// or accepted and not expired at the given time.
	ListExpected(ctx context.Context, societyID string, at time.Time) ([]types.AccessRequest, error)
	// ListExpiredPending returns up to limit pending requests whose approval
	// deadline is at or before now, oldest deadline first.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]types.AccessRequest, error)

	// PurgeDenied deletes a society's denied requests with their decision
	// records and appends audit in the same transaction.
	PurgeDenied(ctx context.Context, societyID string, audit types.AuditEntry) (int64, error)
}

type DeliveryTargetStore interface {
	// Upsert registers token for t.UserID, re-activating and re-binding a
	// known token.
	Upsert(ctx context.Context, t types.DeliveryTarget) (types.DeliveryTarget, error)
	// Deactivate flips one of the user's tokens off. Reports whether a row
	// changed.
	Deactivate(ctx context.Context, userID, token string) (bool, error)
	// DeactivateTokens flips the given tokens off regardless of owner.
	DeactivateTokens(ctx context.Context, tokens []string) (int64, error)
	ListActive(ctx context.Context, userIDs ...string) ([]types.DeliveryTarget, error)
}

type NotificationLogStore interface {
	AppendLogs(ctx context.Context, logs []types.NotificationLog) error
	ListLogs(ctx context.Context, userID string, limit int) ([]types.NotificationLog, error)
}

// Directory is the read side of the tenant structure owned by another
// service.
type Directory interface {
	SocietyForFlat(ctx context.Context, flatID string) (string, error)
	ResidentsOfFlat(ctx context.Context, flatID string) ([]string, error)
	GuardsOfSociety(ctx context.Context, societyID string) ([]string, error)
	IsResident(ctx context.Context, userID, flatID string) (bool, error)
	IsGuard(ctx context.Context, userID, societyID string) (bool, error)
}

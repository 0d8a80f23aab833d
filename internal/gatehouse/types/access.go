package types

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusDenied     Status = "denied"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDenied, StatusCheckedIn, StatusCheckedOut:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusCheckedOut
}

// next lists the only legal successors of each status.
var next = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusDenied},
	StatusAccepted:  {StatusCheckedIn},
	StatusCheckedIn: {StatusCheckedOut},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// ParseDecision accepts the wire spellings accept/approve and deny/reject.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "accept", "approve":
		return DecisionApprove, true
	case "deny", "reject":
		return DecisionDeny, true
	}
	return "", false
}

// AccessRequest is one visitor's solicited or pre-authorized entry.
type AccessRequest struct {
	ID             string     `json:"id"`
	VisitorName    string     `json:"visitor_name"`
	Phone          string     `json:"phone"`
	IDType         string     `json:"id_type,omitempty"`
	IDNumber       string     `json:"id_number,omitempty"`
	VehicleNo      string     `json:"vehicle_no,omitempty"`
	Purpose        string     `json:"purpose,omitempty"`
	NumberOfPeople int        `json:"number_of_people"`
	FlatID         string     `json:"flat_id"`
	SocietyID      string     `json:"society_id"`
	InviterID      string     `json:"inviter_id"`
	InviterRole    Role       `json:"inviter_role"`
	QRCode         string     `json:"qr_code,omitempty"`
	AccessCode     string     `json:"access_code,omitempty"`
	ExpectedStart  *time.Time `json:"expected_start,omitempty"`
	ExpectedEnd    *time.Time `json:"expected_end,omitempty"`
	Status         Status     `json:"status"`
	Deadline       *time.Time `json:"approval_deadline,omitempty"`
	AutoApproved   bool       `json:"auto_approved"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PreAuthorized reports whether the request is a code-bound pass.
func (r AccessRequest) PreAuthorized() bool {
	return r.QRCode != "" || r.AccessCode != ""
}

// Visit is the physical presence record of an accepted request.
type Visit struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"access_request_id"`
	CheckinGuardID  string     `json:"checkin_guard_id"`
	CheckinMethod   string     `json:"checkin_method"`
	Notes           string     `json:"notes,omitempty"`
	CheckinAt       time.Time  `json:"checkin_time"`
	CheckoutGuardID string     `json:"checkout_guard_id,omitempty"`
	CheckoutAt      *time.Time `json:"checkout_time,omitempty"`
}

// Open reports whether the visitor is still on the premises.
func (v Visit) Open() bool { return v.CheckoutAt == nil }

// DecisionRecord is the append-only record of the one decision that moved a
// request out of pending. ActorID is "system" for scheduler decisions.
type DecisionRecord struct {
	ID        string    `json:"id"`
	RequestID string    `json:"access_request_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorRole Role      `json:"actor_role"`
	Decision  Decision  `json:"decision"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// AuditEntry is a row of the general audit trail written alongside every
// state change.
type AuditEntry struct {
	ActorID      string
	ActorRole    Role
	Action       string
	ResourceType string
	ResourceID   string
	Payload      map[string]any
	CreatedAt    time.Time
}

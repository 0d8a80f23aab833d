package types

import "time"

type EventType string

const (
	EventRequestCreated    EventType = "request-created"
	EventRequestDecided    EventType = "request-decided"
	EventRequestTimedOut   EventType = "request-timed-out"
	EventVisitorCheckedIn  EventType = "visitor-checked-in"
	EventVisitorCheckedOut EventType = "visitor-checked-out"
	EventRequestsCleared   EventType = "requests-cleared"
)

// Event is published after every committed transition.
type Event struct {
	Type        EventType `json:"event_type"`
	RequestID   string    `json:"access_request_id,omitempty"`
	VisitorName string    `json:"visitor_name,omitempty"`
	Status      Status    `json:"status,omitempty"`
	FlatID      string    `json:"flat_id,omitempty"`
	SocietyID   string    `json:"society_id"`
	Timestamp   time.Time `json:"timestamp"`

	Decision     Decision   `json:"decision,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	DecidedRole  Role       `json:"decided_role,omitempty"`
	Note         string     `json:"note,omitempty"`
	AutoApproved bool       `json:"auto_approved,omitempty"`
	VisitID      string     `json:"visit_id,omitempty"`
	CheckinAt    *time.Time `json:"checkin_time,omitempty"`
	CheckoutAt   *time.Time `json:"checkout_time,omitempty"`
	Cleared      int64      `json:"cleared,omitempty"`
}

// NewRequestEvent fills the common fields from r.
func NewRequestEvent(t EventType, r AccessRequest, at time.Time) Event {
	return Event{
		Type:         t,
		RequestID:    r.ID,
		VisitorName:  r.VisitorName,
		Status:       r.Status,
		FlatID:       r.FlatID,
		SocietyID:    r.SocietyID,
		Timestamp:    at.UTC(),
		AutoApproved: r.AutoApproved,
	}
}

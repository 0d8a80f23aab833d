package notify

import (
	"fmt"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/push"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Audience is a push recipient group.
type Audience uint8

const (
	AudienceResidents Audience = 1 << iota
	AudienceGuards
)

func (a Audience) Has(b Audience) bool { return a&b != 0 }

// Route says where one event goes.
type Route struct {
	Topics   []types.Topic
	Audience Audience
}

// RouteFor is the fan-out table. Events without a flat or society simply
// skip the missing topic.
func RouteFor(ev types.Event) Route {
	var r Route
	flat := ev.FlatID != ""
	society := ev.SocietyID != ""

	switch ev.Type {
	case types.EventRequestCreated:
		r.Audience = AudienceResidents
	case types.EventRequestDecided:
		if ev.DecidedRole == types.RoleResident {
			r.Audience = AudienceGuards
		} else {
			r.Audience = AudienceResidents
		}
	case types.EventRequestTimedOut:
		r.Audience = AudienceResidents | AudienceGuards
	case types.EventVisitorCheckedIn, types.EventVisitorCheckedOut:
		r.Audience = AudienceResidents
	case types.EventRequestsCleared:
		flat = false
	default:
		return r
	}

	if ev.Type == types.EventRequestCreated {
		society = false
	}
	if flat {
		r.Topics = append(r.Topics, types.FlatTopic(ev.FlatID))
	}
	if society {
		r.Topics = append(r.Topics, types.SocietyTopic(ev.SocietyID))
	}
	return r
}

// MessageFor renders the push text for one audience.
func MessageFor(ev types.Event, to Audience) push.Message {
	m := push.Message{
		Kind:      ev.Type,
		RequestID: ev.RequestID,
		Data: map[string]string{
			"type":              string(ev.Type),
			"access_request_id": ev.RequestID,
			"visitor_name":      ev.VisitorName,
			"flat_id":           ev.FlatID,
			"status":            string(ev.Status),
		},
	}
	name := ev.VisitorName

	switch ev.Type {
	case types.EventRequestCreated:
		m.Title = "Visitor Request"
		m.Body = fmt.Sprintf("%s wants to visit. Tap to approve or reject.", name)
		m.Data["screen"] = "visitor_approvals"
	case types.EventRequestDecided:
		m.Title, m.Body = "Visitor Approved", fmt.Sprintf("%s approved by %s", name, decidedBy(ev))
		if ev.Decision == types.DecisionDeny {
			m.Title, m.Body = "Visitor Rejected", fmt.Sprintf("%s rejected by %s", name, decidedBy(ev))
		}
		m.Data["decision"] = string(ev.Decision)
	case types.EventRequestTimedOut:
		if to == AudienceGuards {
			m.Title = "Request Timed Out"
			m.Body = fmt.Sprintf("%s auto-rejected after no response", name)
		} else {
			m.Title = "Visitor Request Expired"
			m.Body = fmt.Sprintf("%s request auto-rejected (no response)", name)
		}
	case types.EventVisitorCheckedIn:
		m.Title = "Visitor Checked In"
		m.Body = fmt.Sprintf("%s has entered the premises", name)
	case types.EventVisitorCheckedOut:
		m.Title = "Visitor Checked Out"
		m.Body = fmt.Sprintf("%s has left the premises", name)
	}
	return m
}

func decidedBy(ev types.Event) string {
	switch ev.DecidedRole {
	case types.RoleResident:
		return "resident"
	case types.RoleGuard:
		return "guard"
	case types.RoleSocietyAdmin:
		return "society admin"
	}
	return "system"
}

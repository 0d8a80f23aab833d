// Package push delivers device notifications and records one audit row per
// recipient.
package push

import (
	"context"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Message is a provider-neutral notification. Kind and RequestID are only
// used for the notification log.
type Message struct {
	Kind      types.EventType   `json:"event_type"`
	RequestID string            `json:"access_request_id,omitempty"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

// Result is the outcome for one token. Invalid marks a token the provider
// will never accept again.
type Result struct {
	Token   string
	Err     error
	Invalid bool
}

func (r Result) OK() bool { return r.Err == nil }

// Sender hands a message to a push provider. It returns one Result per token
// in the order given; a non-nil error means nothing was sent.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) ([]Result, error)
}

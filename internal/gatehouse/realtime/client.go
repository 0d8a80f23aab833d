// Package realtime pushes lifecycle events to subscribed WebSocket clients.
package realtime

import (
	"sync/atomic"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameEvent        = "event"
	FrameError        = "error"
)

// ClientFrame is what a client sends.
type ClientFrame struct {
	Type      string `json:"type"`
	TopicType string `json:"topic_type"`
	TopicID   string `json:"topic_id"`
}

// Frame is what the server sends.
type Frame struct {
	Type  string       `json:"type"`
	Topic string       `json:"topic,omitempty"`
	Event *types.Event `json:"event,omitempty"`
	Error string       `json:"error,omitempty"`
}

// Client is one connection's handle in the registry. Its outbox is drained by
// the connection's write loop.
type Client struct {
	ID    string
	Actor types.Actor

	out     chan Frame
	dropped atomic.Int64
}

func NewClient(id string, actor types.Actor, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{ID: id, Actor: actor, out: make(chan Frame, buffer)}
}

// Outbox is the stream of frames queued for the connection.
func (c *Client) Outbox() <-chan Frame { return c.out }

// Dropped counts frames discarded because the outbox was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// offer enqueues f without blocking.
func (c *Client) offer(f Frame) bool {
	select {
	case c.out <- f:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

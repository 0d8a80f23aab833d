package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const readLimit = 4096

type WSConfig struct {
	// OriginPatterns are passed to websocket.Accept. Empty means same-origin
	// only.
	OriginPatterns []string
	WriteTimeout   time.Duration
	Buffer         int
}

// WSHandler serves the subscription socket for an already authenticated
// actor.
type WSHandler struct {
	hub    *Hub
	auth   *Authorizer
	cfg    WSConfig
	logger *zap.Logger
}

func NewWSHandler(hub *Hub, auth *Authorizer, cfg WSConfig, logger *zap.Logger) *WSHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{hub: hub, auth: auth, cfg: cfg, logger: logger.Named("ws")}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request, actor types.Actor) {
	opts := &websocket.AcceptOptions{}
	if len(h.cfg.OriginPatterns) > 0 {
		opts.OriginPatterns = h.cfg.OriginPatterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Debug("websocket accept", zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(uuid.NewString(), actor, h.cfg.Buffer)
	defer h.hub.registry.Drop(client)
	h.logger.Info("client connected", zap.String("client", client.ID), zap.String("actor", actor.ID))

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			h.handle(ctx, client, data)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case err := <-readErr:
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Debug("read failed", zap.String("client", client.ID), zap.Error(err))
			}
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			h.logger.Info("client disconnected", zap.String("client", client.ID))
			return
		case f := <-client.out:
			writeCtx, cancelWrite := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := wsjson.Write(writeCtx, conn, f)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

// handle answers one client frame through the outbox so that only the write
// loop touches the connection.
func (h *WSHandler) handle(ctx context.Context, c *Client, data []byte) {
	var in ClientFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.offer(Frame{Type: FrameError, Error: "malformed frame"})
		return
	}
	topic, err := types.ParseTopic(in.TopicType, in.TopicID)
	if err != nil && (in.Type == FrameSubscribe || in.Type == FrameUnsubscribe) {
		c.offer(Frame{Type: FrameError, Error: err.Error()})
		return
	}

	switch in.Type {
	case FrameSubscribe:
		if err := h.auth.Authorize(ctx, c.Actor, topic); err != nil {
			h.logger.Info("subscription refused",
				zap.String("client", c.ID), zap.String("topic", topic.String()), zap.Error(err))
			c.offer(Frame{Type: FrameError, Topic: topic.String(), Error: "forbidden"})
			return
		}
		h.hub.registry.Subscribe(c, topic)
		c.offer(Frame{Type: FrameSubscribed, Topic: topic.String()})
	case FrameUnsubscribe:
		h.hub.registry.Unsubscribe(c, topic)
		c.offer(Frame{Type: FrameUnsubscribed, Topic: topic.String()})
	default:
		c.offer(Frame{Type: FrameError, Error: "unknown frame type " + in.Type})
	}
}

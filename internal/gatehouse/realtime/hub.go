package realtime

import (
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Hub broadcasts events to the registry's members. Publish never blocks on a
// slow client; its frame is dropped instead.
type Hub struct {
	registry *Registry
	logger   *zap.Logger
}

func NewHub(r *Registry, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{registry: r, logger: logger.Named("realtime")}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Publish returns the number of clients the event was queued for.
func (h *Hub) Publish(topics []types.Topic, ev types.Event) int {
	sent := 0
	for _, d := range h.registry.Members(topics...) {
		e := ev
		if d.Client.offer(Frame{Type: FrameEvent, Topic: d.Topic.String(), Event: &e}) {
			sent++
			continue
		}
		h.logger.Debug("outbox full, event dropped",
			zap.String("client", d.Client.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Int64("dropped", d.Client.Dropped()))
	}
	return sent
}

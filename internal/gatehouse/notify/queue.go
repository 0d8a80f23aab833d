// Package notify fans committed lifecycle events out to realtime topics and
// push audiences, off the request path.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/push"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Broadcaster publishes to realtime topics. It must not block.
type Broadcaster interface {
	Publish(topics []types.Topic, ev types.Event) int
}

// Pusher sends one message to a set of users.
type Pusher interface {
	Dispatch(ctx context.Context, userIDs []string, msg push.Message) (push.Summary, error)
}

var ErrQueueClosed = errors.New("notify: queue closed")

type QueueConfig struct {
	Size    int // defaults to 1024
	Workers int // defaults to 4
}

// Queue is a bounded event buffer drained by a fixed worker pool. Enqueue
// never blocks; a full or closed queue drops the event.
type Queue struct {
	dir         store.Directory
	broadcaster Broadcaster
	pusher      Pusher
	logger      *zap.Logger
	workers     int

	mu      sync.RWMutex
	closed  bool
	events  chan types.Event
	dropped atomic.Int64

	done chan struct{}
	once sync.Once
}

func NewQueue(dir store.Directory, b Broadcaster, p Pusher, logger *zap.Logger, cfg QueueConfig) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		dir:         dir,
		broadcaster: b,
		pusher:      p,
		logger:      logger.Named("notify"),
		workers:     cfg.Workers,
		events:      make(chan types.Event, cfg.Size),
		done:        make(chan struct{}),
	}
}

// Notify satisfies the engine's notifier.
func (q *Queue) Notify(ev types.Event) {
	if err := q.Enqueue(ev); err != nil {
		q.logger.Warn("event dropped",
			zap.String("event_type", string(ev.Type)),
			zap.String("request_id", ev.RequestID),
			zap.Int64("dropped", q.dropped.Load()),
			zap.Error(err))
	}
}

func (q *Queue) Enqueue(ev types.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return &types.DeliveryError{Channel: "queue", Err: ErrQueueClosed}
	}
	select {
	case q.events <- ev:
		return nil
	default:
		q.dropped.Add(1)
		return &types.DeliveryError{Channel: "queue", Err: errors.New("queue full")}
	}
}

// Dropped counts events that never reached a worker.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Start launches the workers. They exit once Close has been called and the
// buffer is drained.
func (q *Queue) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for ev := range q.events {
				q.deliver(gctx, ev)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(q.done)
	}()
	q.logger.Info("notify queue started", zap.Int("workers", q.workers), zap.Int("size", cap(q.events)))
}

// Close stops intake and waits for the workers to drain, or for ctx.
func (q *Queue) Close(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) deliver(ctx context.Context, ev types.Event) {
	route := RouteFor(ev)
	if len(route.Topics) > 0 && q.broadcaster != nil {
		n := q.broadcaster.Publish(route.Topics, ev)
		q.logger.Debug("event broadcast", zap.String("event_type", string(ev.Type)), zap.Int("clients", n))
	}
	if q.pusher == nil || route.Audience == 0 {
		return
	}

	for _, aud := range []Audience{AudienceResidents, AudienceGuards} {
		if !route.Audience.Has(aud) {
			continue
		}
		users, err := q.audience(ctx, ev, aud)
		if err != nil {
			q.logger.Error("resolve push audience", zap.String("event_type", string(ev.Type)), zap.Error(err))
			continue
		}
		if len(users) == 0 {
			continue
		}
		if _, err := q.pusher.Dispatch(ctx, users, MessageFor(ev, aud)); err != nil {
			q.logger.Warn("push failed",
				zap.String("event_type", string(ev.Type)),
				zap.String("request_id", ev.RequestID),
				zap.Error(err))
		}
	}
}

// audience resolves the users of one group, minus the actor who caused the
// event.
func (q *Queue) audience(ctx context.Context, ev types.Event, aud Audience) ([]string, error) {
	var (
		users []string
		err   error
	)
	switch aud {
	case AudienceResidents:
		if ev.FlatID == "" {
			return nil, nil
		}
		users, err = q.dir.ResidentsOfFlat(ctx, ev.FlatID)
	case AudienceGuards:
		if ev.SocietyID == "" {
			return nil, nil
		}
		users, err = q.dir.GuardsOfSociety(ctx, ev.SocietyID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u != ev.DecidedBy {
			out = append(out, u)
		}
	}
	return out, nil
}

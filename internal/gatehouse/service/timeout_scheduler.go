package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Leader grants one instance the right to run a named periodic job. It lets
// several servers share a database without double-denying a request.
type Leader interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// TimeoutLeaseName is the lease the scheduler contends for.
const TimeoutLeaseName = "gatehouse:timeout-scheduler"

// TimeoutScheduler denies pending requests whose approval deadline passed.
// It runs as a background goroutine and is stopped via its context or Stop.
type TimeoutScheduler struct {
	engine   *Engine
	interval time.Duration
	batch    int
	leader   Leader
	leaseTTL time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// TimeoutSchedulerConfig holds the parameters for NewTimeoutScheduler.
type TimeoutSchedulerConfig struct {
	// Interval between ticks. Defaults to 60s.
	Interval time.Duration

	// Batch caps the requests denied per tick. Defaults to 100.
	Batch int

	// Leader is optional. Without it the scheduler assumes it is the only
	// instance.
	Leader Leader

	// LeaseTTL must outlive Interval so the lease is renewed before it lapses.
	// Defaults to 1.5x Interval.
	LeaseTTL time.Duration
}

// TickResult summarizes one tick.
type TickResult struct {
	Leader     bool
	Candidates int
	Denied     int
	Skipped    int // resolved by someone else first
	Failed     int
}

func NewTimeoutScheduler(e *Engine, cfg TimeoutSchedulerConfig, logger *zap.Logger) *TimeoutScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.LeaseTTL <= cfg.Interval {
		cfg.LeaseTTL = cfg.Interval + cfg.Interval/2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutScheduler{
		engine:   e,
		interval: cfg.Interval,
		batch:    cfg.Batch,
		leader:   cfg.Leader,
		leaseTTL: cfg.LeaseTTL,
		logger:   logger.Named("timeout"),
		done:     make(chan struct{}),
	}
}

// Start runs one tick immediately, then one per interval, until ctx is
// cancelled or Stop is called.
func (s *TimeoutScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	s.logger.Info("timeout scheduler started",
		zap.Duration("interval", s.interval), zap.Bool("leader_election", s.leader != nil))
}

// Stop signals the loop to exit and waits for it.
func (s *TimeoutScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *TimeoutScheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick denies every currently expired request. A failure on one request is
// logged and does not stop the others; it is retried on the next tick.
func (s *TimeoutScheduler) Tick(ctx context.Context) TickResult {
	var res TickResult

	if s.leader != nil {
		ok, err := s.leader.TryAcquire(ctx, TimeoutLeaseName, s.leaseTTL)
		if err != nil {
			s.logger.Warn("leader lease check failed, skipping tick", zap.Error(err))
			return res
		}
		if !ok {
			s.logger.Debug("not the leader, skipping tick")
			return res
		}
	}
	res.Leader = true

	candidates, err := s.engine.ExpiredPending(ctx, s.batch)
	if err != nil {
		s.logger.Error("list expired requests", zap.Error(err))
		return res
	}
	res.Candidates = len(candidates)

	for _, r := range candidates {
		if ctx.Err() != nil {
			break
		}
		_, err := s.engine.TimeoutDeny(ctx, r.ID)
		switch {
		case err == nil:
			res.Denied++
		case errors.Is(err, types.ErrConflict):
			res.Skipped++
			s.logger.Debug("request resolved before timeout", zap.String("request_id", r.ID), zap.Error(err))
		default:
			res.Failed++
			s.logger.Error("auto-reject failed", zap.String("request_id", r.ID), zap.Error(err))
		}
	}

	if res.Denied > 0 || res.Failed > 0 {
		s.logger.Info("timeout tick",
			zap.Int("candidates", res.Candidates),
			zap.Int("denied", res.Denied),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
	return res
}

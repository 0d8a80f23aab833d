// Package health exposes the standard grpc.health.v1 service for load
// balancers and orchestrators.
package health

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the fully qualified name reported alongside the overall ("")
// status.
const Service = "gatehouse.v1.Gatehouse"

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type Config struct {
	Interval time.Duration // re-probe period, default 10s
	Timeout  time.Duration // per-probe timeout, default 2s
}

type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	ping   Pinger
	cfg    Config
	logger *zap.Logger
}

func NewServer(ping Pinger, cfg Config, logger *zap.Logger) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := grpchealth.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		grpc:   gs,
		health: hs,
		ping:   ping,
		cfg:    cfg,
		logger: logger.Named("health"),
	}
}

// Refresh probes once and publishes the result.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ping != nil {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := s.ping(pctx)
		cancel()
		if err != nil {
			s.logger.Warn("dependency probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(Service, status)
	return status
}

// Serve probes immediately, then every Interval, while serving lis. It
// returns when ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()

	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Drain flips every service to NOT_SERVING and ignores later probes.
func (s *Server) Drain() {
	s.health.Shutdown()
}

// Shutdown drains, then stops the gRPC server, forcing it closed if ctx
// expires first.
func (s *Server) Shutdown(ctx context.Context) {
	s.Drain()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

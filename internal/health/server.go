// Package health exposes the standard gRPC health service for orchestrators
// and a small client to probe it.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the per-service name reported alongside the overall status.
const ServiceName = "pawcare.triage"

const (
	defaultInterval     = 15 * time.Second
	defaultCheckTimeout = 5 * time.Second
)

// Check reports an error when a dependency is unavailable.
type Check func(ctx context.Context) error

// Server serves grpc.health.v1.Health and keeps its status in line with
// the registered checks.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	serving bool
}

// Option configures a Server.
type Option func(*Server)

// WithInterval sets how often checks are re-evaluated.
func WithInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCheckTimeout bounds each evaluation round.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates a health server. Both the overall status and
// ServiceName start as NOT_SERVING until the first evaluation.
func NewServer(checks map[string]Check, opts ...Option) *Server {
	s := &Server{
		grpc: grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		})),
		health:   health.NewServer(),
		checks:   checks,
		interval: defaultInterval,
		timeout:  defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Evaluate runs every check once and publishes the result. It returns the
// names of failing checks, sorted.
func (s *Server) Evaluate(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var failing []string
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Health check failed", "check", name, "error", err)
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	serving := len(failing) == 0
	s.mu.Lock()
	changed := serving != s.serving
	s.serving = serving
	s.mu.Unlock()

	if serving {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	if changed {
		slog.Info("Health status changed", "serving", serving, "failing", failing)
	}
	return failing
}

// Serve evaluates the checks, then serves on lis until ctx is done, and
// re-evaluates on every interval tick. It stops gracefully on cancel.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Evaluate(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	slog.Info("gRPC health server listening", "addr", lis.Addr().String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Evaluate(ctx)
		case err := <-errCh:
			if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC health: %w", err)
			}
			return nil
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			slog.Info("gRPC health server stopped", "reason", ctx.Err())
			return nil
		}
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

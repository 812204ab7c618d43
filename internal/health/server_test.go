package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return lis.Addr().String()
}

func TestServerReportsServing(t *testing.T) {
	t.Parallel()

	s := NewServer(map[string]Check{
		"database": func(context.Context) error { return nil },
	})
	addr := startServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, service := range []string{"", ServiceName} {
		status, err := Probe(ctx, addr, service)
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status, service)
	}

	_, err := Probe(ctx, addr, "unknown.service")
	assert.Error(t, err)
}

func TestServerFlipsWithChecks(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	s := NewServer(map[string]Check{
		"database": func(context.Context) error {
			if failing.Load() {
				return errors.New("unreachable")
			}
			return nil
		},
	}, WithInterval(10*time.Millisecond))
	addr := startServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failing.Store(true)
	require.Eventually(t, func() bool {
		status, err := Probe(ctx, addr, ServiceName)
		return err == nil && status == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	failing.Store(false)
	require.Eventually(t, func() bool {
		status, err := Probe(ctx, addr, "")
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEvaluateReturnsFailingChecks(t *testing.T) {
	t.Parallel()

	s := NewServer(map[string]Check{
		"b": func(context.Context) error { return errors.New("down") },
		"a": func(context.Context) error { return errors.New("down") },
		"c": func(context.Context) error { return nil },
	})
	assert.Equal(t, []string{"a", "b"}, s.Evaluate(context.Background()))
}

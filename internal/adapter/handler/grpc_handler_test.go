package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func servingStatus(t *testing.T, srv *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter(t *testing.T) {
	srv := health.NewServer()
	reporter := NewHealthReporter(srv, 0, nil)

	db := &fakePinger{}
	cache := &fakePinger{}
	reporter.Register("mysql", db)
	reporter.Register("redis", cache)

	assert.True(t, reporter.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, srv, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, srv, "redis"))

	cache.err = errors.New("connection refused")
	assert.False(t, reporter.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, srv, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, srv, "redis"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, srv, "mysql"))

	reporter.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, srv, "mysql"))
}

package handler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const pingTimeout = 2 * time.Second

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter drives the grpc.health.v1 service: each registered
// dependency is reported under its own name and the empty service name is
// SERVING only while every dependency answers.
type HealthReporter struct {
	server   *health.Server
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	checks map[string]Pinger
}

func NewHealthReporter(server *health.Server, interval time.Duration, logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthReporter{
		server:   server,
		interval: interval,
		logger:   logger,
		checks:   make(map[string]Pinger),
	}
}

func (h *HealthReporter) Register(name string, p Pinger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = p
	h.server.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Check pings every dependency once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	healthy := true
	for name, p := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		}
		h.server.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", overall)
	return healthy
}

// Run checks immediately and then on every interval until ctx is done.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)
	if h.interval <= 0 {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before the
// listener closes.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}

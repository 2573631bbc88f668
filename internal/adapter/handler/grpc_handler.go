package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name reported next to the overall ("") status.
const ServiceName = "shop.billing"

type GRPCHandler struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewGRPCHandler(logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	reflection.Register(server)

	h := &GRPCHandler{server: server, health: hs, logger: logger}
	h.setStatus(healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *GRPCHandler) Server() *grpc.Server {
	return h.server
}

// WatchStore pings the store every interval and flips the health status
// accordingly until ctx is done.
func (h *GRPCHandler) WatchStore(ctx context.Context, ping func(ctx context.Context) error, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := ping(pingCtx)
			cancel()

			switch {
			case err != nil && serving:
				h.logger.Warn("store unreachable, reporting NOT_SERVING", zap.Error(err))
				h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				h.logger.Info("store reachable again, reporting SERVING")
				h.setStatus(healthpb.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}

// Shutdown marks every service NOT_SERVING and stops the server gracefully.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

func (h *GRPCHandler) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

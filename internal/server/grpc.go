// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the engine.
const ServiceName = "entitlement-engine"

// HealthProbe reports whether the engine's backing stores are reachable.
type HealthProbe interface {
	IsHealthy(ctx context.Context) bool
}

// GRPCServer serves gRPC health checks and reflection for the engine.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	port     int
	probe    HealthProbe
	clock    clock.Clock
	interval time.Duration
	watcher  clock.Stopper
}

// NewGRPCServer creates a new gRPC server instance. A nil probe always reports serving.
func NewGRPCServer(port int, probe HealthProbe, clk clock.Clock, interval time.Duration) *GRPCServer {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GRPCServer{
		port:     port,
		probe:    probe,
		clock:    clk,
		interval: interval,
	}
}

// Setup configures interceptors and registers the health and reflection services.
func (s *GRPCServer) Setup() error {
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(common.InterceptorLogger(logrus.StandardLogger())),
	}
	streamInterceptors := []grpc.StreamServerInterceptor{
		logging.StreamServerInterceptor(common.InterceptorLogger(logrus.StandardLogger())),
	}

	s.server = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryInterceptors...),
		grpc.ChainStreamInterceptor(streamInterceptors...),
	)

	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.RefreshHealth(context.Background())

	logrus.Infof("gRPC reflection and health check enabled")
	return nil
}

// RefreshHealth sets the serving status from the probe.
func (s *GRPCServer) RefreshHealth(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.probe != nil && !s.probe.IsHealthy(ctx) {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Start begins listening and serving gRPC requests, and keeps the health
// status current on the configured interval.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.watcher = s.clock.Every(s.interval, func() {
		s.RefreshHealth(context.Background())
	})

	go func() {
		logrus.Infof("gRPC server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil {
			logrus.Errorf("gRPC server stopped serving: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the gRPC server.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down gRPC server...")
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.health.Shutdown()
	s.server.GracefulStop()
	logrus.Info("gRPC server stopped")
	return nil
}

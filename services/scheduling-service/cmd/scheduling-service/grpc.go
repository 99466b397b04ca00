package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/carebook/libs/grpcx"
	"github.com/md-rashed-zaman/carebook/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthCheckEvery = 10 * time.Second

// startGrpcServer serves grpc.health.v1 on port. The reported status follows
// the given dependency checks.
func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, checks ...runtime.ReadyCheck) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(healthCheckEvery)
		defer ticker.Stop()
		for {
			updateHealth(ctx, logger, hs, checks)
			select {
			case <-ctx.Done():
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

func updateHealth(ctx context.Context, logger *slog.Logger, hs *health.Server, checks []runtime.ReadyCheck) {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, checks...); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logger.Warn("grpc health degraded", "failures", failures)
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(healthpb.Health_ServiceDesc.ServiceName, status)
}

// grpcHealthCheck dials the health service at addr and expects SERVING.
func grpcHealthCheck(addr string) func(context.Context) error {
	return func(ctx context.Context) error {
		conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 2 * time.Second})
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc health: %s", resp.GetStatus())
		}
		return nil
	}
}

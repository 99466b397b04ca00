package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestDial_HealthRoundTripPropagatesRequestID(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hs := health.NewServer()
	hs.SetServingStatus("scheduling", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := Dial(ctx, lis.Addr().String(), DialOptions{Timeout: 2 * time.Second, WaitReady: true})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var header metadata.MD
	resp, err := healthpb.NewHealthClient(conn).Check(WithRequestID(ctx, "req-42"),
		&healthpb.HealthCheckRequest{Service: "scheduling"}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status %s", resp.GetStatus())
	}
	if got := header.Get(RequestIDMetadataKey); len(got) == 0 || got[0] != "req-42" {
		t.Fatalf("request id not echoed: %v", got)
	}
}

func TestWithRequestID_Empty(t *testing.T) {
	ctx := context.Background()
	if WithRequestID(ctx, "") != ctx {
		t.Fatal("empty id should not wrap the context")
	}
	if len(NewRequestID()) != 32 {
		t.Fatal("expected 32 char hex id")
	}
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/carebook/libs/grpcx"
	"github.com/md-rashed-zaman/carebook/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGrpcHealthCheck_FollowsDependencyChecks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpcx.NewServer(logger)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	updateHealth(ctx, logger, hs, []runtime.ReadyCheck{ok})
	if err := grpcHealthCheck(lis.Addr().String())(ctx); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	failing := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error { return context.DeadlineExceeded }}
	updateHealth(ctx, logger, hs, []runtime.ReadyCheck{failing})
	if err := grpcHealthCheck(lis.Addr().String())(ctx); err == nil {
		t.Fatal("expected not serving")
	}
}

func TestRateLimit_InMemoryFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := rateLimit(ctx, logger, nil, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil))
	if first.Code != http.StatusNoContent || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 204 then 429, got %d then %d", first.Code, second.Code)
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/carebook/libs/config"
	"github.com/md-rashed-zaman/carebook/libs/db"
	"github.com/md-rashed-zaman/carebook/libs/httpx"
	"github.com/md-rashed-zaman/carebook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/carebook/libs/otel"
	"github.com/md-rashed-zaman/carebook/libs/redisx"
	"github.com/md-rashed-zaman/carebook/libs/runtime"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/cache"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/retention"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9094")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		panic(err)
	}
	rdb, err := redisx.Open(ctx, redisx.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	if err != nil {
		// The cache and the shared limiter are optional; run without them.
		logger.Warn("redis unavailable; continuing without cache", "err", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	cacheTTL, err := config.Duration("POLICY_CACHE_TTL", 5*time.Minute)
	if err != nil {
		panic(err)
	}
	maxQueryDays, err := config.Int("MAX_QUERY_DAYS", 62)
	if err != nil {
		panic(err)
	}

	policyRepo := storage.NewPolicyRepository(pool)
	slotRepo := storage.NewSlotRepository(pool)
	outboxRepo := outbox.NewRepository()
	svc := booking.NewService(pool, policyRepo, slotRepo, cache.NewPolicyCache(rdb, cacheTTL), outboxRepo, logger, booking.Config{
		MaxQueryDays: maxQueryDays,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if len(kafkax.SplitBrokers(brokers)) > 0 {
		projection := consumer.NewSlotProjection(slotRepo, logger)
		c := consumer.New(pool, logger, inbox.NewRepository(), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  config.List("KAFKA_SLOT_TOPICS", consumer.TopicSlotReserved+","+consumer.TopicSlotReleased),
		}, projection.Handle)
		go c.Run(ctx)
	} else {
		logger.Warn("slot projection consumer disabled (no kafka brokers configured)")
	}

	if config.Bool("RETENTION_ENABLED", true) {
		idempotencyTTL, err := config.Duration("IDEMPOTENCY_KEY_TTL", 24*time.Hour)
		if err != nil {
			panic(err)
		}
		outboxMaxAge, err := config.Duration("OUTBOX_RETENTION", 7*24*time.Hour)
		if err != nil {
			panic(err)
		}
		go retention.NewWorker(pool, logger, retention.Config{
			OutboxMaxAge:   outboxMaxAge,
			IdempotencyTTL: idempotencyTTL,
		}).Run(ctx)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	checks = append(checks, runtime.ReadyCheck{Name: "grpc", Check: grpcHealthCheck("127.0.0.1:" + grpcPort)})
	mux := runtime.NewBaseMuxWithReady(checks...)

	api := http.NewServeMux()
	handlers.NewSchedulingHandler(svc, logger).Register(api)
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	mux.Handle("/api/", httpx.Chain(api,
		rateLimit(ctx, logger, rdb, perMinute),
		httpx.WithBodyLimit(maxBodyBytes),
	))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS", ""))),
	)
	handler = otelhttp.NewHandler(handler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, grpcPort, checks[0]); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimit prefers the Redis limiter so every replica shares one budget.
func rateLimit(ctx context.Context, logger *slog.Logger, rdb *redis.Client, perMinute int) httpx.Middleware {
	if rdb != nil {
		return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "sched:rl").Middleware(logger, true)
	}
	rl := httpx.NewRateLimiter(perMinute, time.Minute)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Sweep(); n > 0 {
					logger.Debug("rate limiter swept", "visitors", n)
				}
			}
		}
	}()
	return rl.Middleware()
}

package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/libs/db"
	"github.com/md-rashed-zaman/carebook/libs/kafkax"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler applies one message inside the transaction that also records it in
// the inbox.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

var errDuplicate = errors.New("duplicate event")

type Consumer struct {
	reader      *kafka.Reader
	pool        *db.Pool
	logger      *slog.Logger
	inbox       *inbox.Repository
	handler     Handler
	maxAttempts int
	backoff     time.Duration
}

type Config struct {
	Brokers     string
	GroupID     string
	Topics      []string
	MaxAttempts int
}

func New(pool *db.Pool, logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:      reader,
		pool:        pool,
		logger:      logger,
		inbox:       inboxRepo,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     time.Second,
	}
}

// Run fetches, applies and commits messages until ctx is done. A message that
// keeps failing is committed after maxAttempts so the partition moves on.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			sleep(ctx, c.backoff)
			continue
		}

		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			err = c.process(ctx, msg)
			if err == nil || errors.Is(err, errDuplicate) || ctx.Err() != nil {
				break
			}
			c.logger.Warn("event handling failed", "err", err, "topic", msg.Topic, "offset", msg.Offset, "attempt", attempt)
			sleep(ctx, time.Duration(attempt)*c.backoff)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, errDuplicate) {
			c.logger.Error("event dropped after retries", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	err := c.pool.InTx(ctxSpan, func(tx pgx.Tx) error {
		fresh, err := c.inbox.Record(ctxSpan, tx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			return errDuplicate
		}
		return c.handler(ctxSpan, tx, msg)
	})
	switch {
	case errors.Is(err, errDuplicate):
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

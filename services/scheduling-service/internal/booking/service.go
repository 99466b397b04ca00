package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/md-rashed-zaman/carebook/libs/otel"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/cache"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRangeTooLarge   = errors.New("requested range is too large")
	ErrPolicyNotFound  = errors.New("schedule policy not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("requested time is not an available slot")
	ErrSlotTaken       = errors.New("slot already taken")
)

type TxRunner interface {
	InTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type PolicyStore interface {
	GetPolicy(ctx context.Context, professionalID string) (availability.SchedulePolicy, error)
	ReplacePolicy(ctx context.Context, tx pgx.Tx, professionalID string, policy availability.SchedulePolicy) error
}

type SlotStore interface {
	ListOverlapping(ctx context.Context, professionalID string, from, to time.Time) ([]availability.ScheduleSlot, error)
	Create(ctx context.Context, tx pgx.Tx, professionalID string, slot availability.ScheduleSlot) (string, error)
	Delete(ctx context.Context, tx pgx.Tx, professionalID, slotID string) (availability.ScheduleSlot, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, professionalID, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, professionalID, key, slotID string, statusCode int, response []byte) error
}

type PolicyCache interface {
	Get(ctx context.Context, professionalID string) (availability.SchedulePolicy, error)
	Set(ctx context.Context, professionalID string, policy availability.SchedulePolicy) error
	Invalidate(ctx context.Context, professionalID string) error
}

type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Config struct {
	MaxQueryDays int
}

// Service is the scheduling use case layer: it loads policies and occupied
// slots, asks the availability engine for open intervals and records
// bookings and releases together with their outbox events.
type Service struct {
	tx       TxRunner
	policies PolicyStore
	slots    SlotStore
	cache    PolicyCache
	events   EventWriter
	logger   *slog.Logger
	maxRange time.Duration
	now      func() time.Time
}

func NewService(tx TxRunner, policies PolicyStore, slots SlotStore, policyCache PolicyCache, events EventWriter, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxQueryDays <= 0 {
		cfg.MaxQueryDays = 62
	}
	return &Service{
		tx:       tx,
		policies: policies,
		slots:    slots,
		cache:    policyCache,
		events:   events,
		logger:   logger,
		maxRange: time.Duration(cfg.MaxQueryDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Availability returns the open intervals for a professional in [from, to),
// expressed in the policy's time zone.
func (s *Service) Availability(ctx context.Context, professionalID string, from, to time.Time) ([]availability.Interval, error) {
	if !to.After(from) {
		return nil, nil
	}
	if to.Sub(from) > s.maxRange {
		return nil, fmt.Errorf("%w: at most %d days", ErrRangeTooLarge, int(s.maxRange.Hours()/24))
	}

	ctx, span := otelx.Tracer("scheduling-service").Start(ctx, "availability.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("professional.id", professionalID),
		attribute.String("range.from", from.Format(time.RFC3339)),
		attribute.String("range.to", to.Format(time.RFC3339)),
	)

	var (
		policy   availability.SchedulePolicy
		existing []availability.ScheduleSlot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.loadPolicy(gctx, professionalID)
		policy = p
		return err
	})
	g.Go(func() error {
		slots, err := s.slots.ListOverlapping(gctx, professionalID, from, to)
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		existing = slots
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	loc := policy.Location()
	out, err := availability.GenerateAvailableIntervals(policy, existing, from.In(loc), to.In(loc))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("slots.existing", len(existing)),
		attribute.Int("intervals.count", len(out)),
	)
	return out, nil
}

func (s *Service) GetPolicy(ctx context.Context, professionalID string) (availability.SchedulePolicy, error) {
	return s.loadPolicy(ctx, professionalID)
}

// ReplacePolicy swaps the whole policy of a professional and announces it.
func (s *Service) ReplacePolicy(ctx context.Context, professionalID string, policy availability.SchedulePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	evt, err := outbox.NewPolicyUpdatedEvent(outbox.PolicyPayload{
		ProfessionalID:  professionalID,
		DurationMinutes: policy.DurationMinutes,
		TimeZone:        policy.TimeZone,
		WindowCount:     len(policy.Windows),
		OccurredAt:      s.now().UTC(),
	})
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.policies.ReplacePolicy(ctx, tx, professionalID, policy); err != nil {
			return fmt.Errorf("replace policy: %w", err)
		}
		return s.events.Insert(ctx, tx, evt)
	})
	if err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, professionalID); err != nil {
		s.logger.Warn("policy cache invalidate failed", "err", err, "professional_id", professionalID)
	}
	return nil
}

type BookRequest struct {
	ProfessionalID string
	Start          time.Time
	IdempotencyKey string
}

type BookResult struct {
	SlotID         string    `json:"slot_id"`
	ProfessionalID string    `json:"professional_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	Replayed       bool      `json:"-"`
}

const (
	statusCreated       = 201
	statusUnprocessable = 422
)

// Book reserves [Start, Start+duration) when the engine currently offers
// exactly that interval. A repeated IdempotencyKey replays the first outcome.
func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	var (
		result  BookResult
		outcome error
	)
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if req.IdempotencyKey != "" {
			rec, seen, err := s.slots.LockIdempotencyKey(ctx, tx, req.ProfessionalID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if seen && rec.StatusCode > 0 {
				result, outcome = replay(rec)
				return nil
			}
		}

		interval, err := s.offered(ctx, req.ProfessionalID, req.Start)
		if errors.Is(err, ErrSlotUnavailable) {
			outcome = err
			if req.IdempotencyKey == "" {
				return nil
			}
			body, _ := json.Marshal(map[string]string{"error": err.Error()})
			return s.slots.FinalizeIdempotency(ctx, tx, req.ProfessionalID, req.IdempotencyKey, "", statusUnprocessable, body)
		}
		if err != nil {
			return err
		}

		slot := availability.ScheduleSlot{Start: interval.Start, End: interval.End, Status: availability.SlotStatusBooked}
		id, err := s.slots.Create(ctx, tx, req.ProfessionalID, slot)
		if errors.Is(err, storage.ErrConflict) {
			return ErrSlotTaken
		}
		if err != nil {
			return fmt.Errorf("create slot: %w", err)
		}

		result = BookResult{
			SlotID:         id,
			ProfessionalID: req.ProfessionalID,
			StartTime:      interval.Start,
			EndTime:        interval.End,
			Status:         slot.Status,
		}
		evt, err := outbox.NewSlotEvent(outbox.EventSlotBooked, outbox.SlotPayload{
			SlotID:         id,
			ProfessionalID: req.ProfessionalID,
			StartTime:      interval.Start.UTC(),
			EndTime:        interval.End.UTC(),
			Status:         slot.Status,
			OccurredAt:     s.now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := s.events.Insert(ctx, tx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}

		if req.IdempotencyKey != "" {
			body, err := json.Marshal(result)
			if err != nil {
				return err
			}
			return s.slots.FinalizeIdempotency(ctx, tx, req.ProfessionalID, req.IdempotencyKey, id, statusCreated, body)
		}
		return nil
	})
	if err != nil {
		return BookResult{}, err
	}
	if outcome != nil {
		return BookResult{}, outcome
	}
	return result, nil
}

// Release frees a slot so its time becomes available again.
func (s *Service) Release(ctx context.Context, professionalID, slotID string) (availability.ScheduleSlot, error) {
	var released availability.ScheduleSlot
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		slot, err := s.slots.Delete(ctx, tx, professionalID, slotID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		released = slot

		evt, err := outbox.NewSlotEvent(outbox.EventSlotReleased, outbox.SlotPayload{
			SlotID:         slot.ID,
			ProfessionalID: professionalID,
			StartTime:      slot.Start.UTC(),
			EndTime:        slot.End.UTC(),
			Status:         slot.Status,
			OccurredAt:     s.now().UTC(),
		})
		if err != nil {
			return err
		}
		return s.events.Insert(ctx, tx, evt)
	})
	if err != nil {
		return availability.ScheduleSlot{}, err
	}
	return released, nil
}

// offered runs the engine over exactly [start, start+duration) and returns the
// interval when it is on the grid and free.
func (s *Service) offered(ctx context.Context, professionalID string, start time.Time) (availability.Interval, error) {
	policy, err := s.loadPolicy(ctx, professionalID)
	if err != nil {
		return availability.Interval{}, err
	}
	if !start.After(s.now()) {
		return availability.Interval{}, fmt.Errorf("%w: start is in the past", ErrSlotUnavailable)
	}
	loc := policy.Location()
	from := start.In(loc)
	to := from.Add(policy.Duration())

	existing, err := s.slots.ListOverlapping(ctx, professionalID, from, to)
	if err != nil {
		return availability.Interval{}, fmt.Errorf("list slots: %w", err)
	}
	intervals, err := availability.GenerateAvailableIntervals(policy, existing, from, to)
	if err != nil {
		return availability.Interval{}, err
	}
	for _, iv := range intervals {
		if iv.Start.Equal(from) {
			return iv, nil
		}
	}
	return availability.Interval{}, ErrSlotUnavailable
}

// loadPolicy reads through the cache. Cache errors only cost a repository
// round trip.
func (s *Service) loadPolicy(ctx context.Context, professionalID string) (availability.SchedulePolicy, error) {
	policy, err := s.cache.Get(ctx, professionalID)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("policy cache read failed", "err", err, "professional_id", professionalID)
	}

	policy, err = s.policies.GetPolicy(ctx, professionalID)
	if errors.Is(err, storage.ErrNotFound) {
		return availability.SchedulePolicy{}, ErrPolicyNotFound
	}
	if err != nil {
		return availability.SchedulePolicy{}, fmt.Errorf("load policy: %w", err)
	}
	if err := s.cache.Set(ctx, professionalID, policy); err != nil {
		s.logger.Warn("policy cache write failed", "err", err, "professional_id", professionalID)
	}
	return policy, nil
}

func replay(rec storage.IdempotencyRecord) (BookResult, error) {
	if rec.StatusCode != statusCreated {
		return BookResult{}, ErrSlotUnavailable
	}
	var result BookResult
	if len(rec.ResponsePayload) > 0 {
		if err := json.Unmarshal(rec.ResponsePayload, &result); err != nil {
			return BookResult{}, fmt.Errorf("decode stored response: %w", err)
		}
	}
	if result.SlotID == "" {
		result.SlotID = rec.SlotID
	}
	result.Replayed = true
	return result, nil
}

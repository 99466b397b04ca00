package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// Topics published by the booking subsystem.
const (
	TopicSlotReserved = "booking.slot.reserved.v1"
	TopicSlotReleased = "booking.slot.released.v1"
)

type slotWriter interface {
	Upsert(ctx context.Context, tx pgx.Tx, professionalID string, slot availability.ScheduleSlot) error
	Delete(ctx context.Context, tx pgx.Tx, professionalID, slotID string) (availability.ScheduleSlot, error)
}

type slotEvent struct {
	SlotID         string    `json:"slot_id"`
	ProfessionalID string    `json:"professional_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
}

// SlotProjection keeps schedule_slots in step with slots reserved and
// released elsewhere.
type SlotProjection struct {
	slots  slotWriter
	logger *slog.Logger
}

func NewSlotProjection(slots slotWriter, logger *slog.Logger) *SlotProjection {
	return &SlotProjection{slots: slots, logger: logger}
}

func (p *SlotProjection) Handle(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
	var evt slotEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		p.logger.Warn("malformed slot event skipped", "topic", msg.Topic, "err", err)
		return nil
	}
	if evt.SlotID == "" || evt.ProfessionalID == "" {
		p.logger.Warn("slot event missing ids skipped", "topic", msg.Topic)
		return nil
	}

	switch msg.Topic {
	case TopicSlotReserved:
		if !evt.StartTime.Before(evt.EndTime) {
			p.logger.Warn("slot event with empty span skipped", "slot_id", evt.SlotID)
			return nil
		}
		status := evt.Status
		if status == "" {
			status = availability.SlotStatusBooked
		}
		return p.reserve(ctx, tx, evt.ProfessionalID, availability.ScheduleSlot{
			ID:     evt.SlotID,
			Start:  evt.StartTime,
			End:    evt.EndTime,
			Status: status,
		})
	case TopicSlotReleased:
		_, err := p.slots.Delete(ctx, tx, evt.ProfessionalID, evt.SlotID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unexpected topic %q", msg.Topic)
	}
}

// reserve writes the slot under a savepoint. An exclusion violation aborts the
// enclosing transaction, so only the savepoint is rolled back on conflict and
// the inbox record still commits.
func (p *SlotProjection) reserve(ctx context.Context, tx pgx.Tx, professionalID string, slot availability.ScheduleSlot) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	err = p.slots.Upsert(ctx, sp, professionalID, slot)
	if err == nil {
		return sp.Commit(ctx)
	}
	if rbErr := sp.Rollback(ctx); rbErr != nil {
		return fmt.Errorf("rollback savepoint: %w", rbErr)
	}
	if errors.Is(err, storage.ErrConflict) {
		p.logger.Warn("reserved slot overlaps local slot", "slot_id", slot.ID, "professional_id", professionalID)
		return nil
	}
	return err
}

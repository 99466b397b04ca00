package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/libs/db"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
)

// Slot sources.
const (
	SourceScheduling = "scheduling"
	SourceBooking    = "booking"
)

type SlotRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	ProfessionalID  string
	IdempotencyKey  string
	SlotID          string
	StatusCode      int
	ResponsePayload []byte
}

func NewSlotRepository(pool *db.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// ListOverlapping returns every slot, whatever its status, whose span
// intersects [from, to).
func (r *SlotRepository) ListOverlapping(ctx context.Context, professionalID string, from, to time.Time) ([]availability.ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, start_time, end_time, status
		FROM schedule_slots
		WHERE professional_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []availability.ScheduleSlot
	for rows.Next() {
		var s availability.ScheduleSlot
		if err := rows.Scan(&s.ID, &s.Start, &s.End, &s.Status); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

// Create inserts a slot and returns its id. Overlap with another slot of the
// same professional is reported as ErrConflict.
func (r *SlotRepository) Create(ctx context.Context, tx pgx.Tx, professionalID string, slot availability.ScheduleSlot) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_slots (id, professional_id, start_time, end_time, status, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, professionalID, slot.Start, slot.End, slot.Status, SourceScheduling)
	if err != nil {
		return "", mapErr(err)
	}
	return id, nil
}

// Upsert writes a slot owned by another subsystem, keyed by its id.
func (r *SlotRepository) Upsert(ctx context.Context, tx pgx.Tx, professionalID string, slot availability.ScheduleSlot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_slots (id, professional_id, start_time, end_time, status, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			updated_at = now()
	`, slot.ID, professionalID, slot.Start, slot.End, slot.Status, SourceBooking)
	return mapErr(err)
}

// Delete removes a slot and returns what was removed.
func (r *SlotRepository) Delete(ctx context.Context, tx pgx.Tx, professionalID, slotID string) (availability.ScheduleSlot, error) {
	var s availability.ScheduleSlot
	err := tx.QueryRow(ctx, `
		DELETE FROM schedule_slots
		WHERE id = $1 AND professional_id = $2
		RETURNING id::text, start_time, end_time, status
	`, slotID, professionalID).Scan(&s.ID, &s.Start, &s.End, &s.Status)
	if err != nil {
		return availability.ScheduleSlot{}, mapErr(err)
	}
	return s, nil
}

// LockIdempotencyKey returns the stored record for key, creating an empty one
// when absent. The row stays locked until tx ends. found reports whether the
// key had been seen before.
func (r *SlotRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, professionalID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, professionalID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO slot_idempotency_keys (professional_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (professional_id, idempotency_key) DO NOTHING
	`, professionalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, professionalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	// A concurrent request may have completed between the two selects.
	return rec, rec.StatusCode != 0, nil
}

func (r *SlotRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, professionalID, key, slotID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE slot_idempotency_keys
		SET slot_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE professional_id = $1 AND idempotency_key = $2
	`, professionalID, key, slotID, statusCode, response)
	return err
}

func (r *SlotRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, professionalID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT professional_id::text,
			idempotency_key,
			COALESCE(slot_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM slot_idempotency_keys
		WHERE professional_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, professionalID, key).Scan(
		&rec.ProfessionalID,
		&rec.IdempotencyKey,
		&rec.SlotID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

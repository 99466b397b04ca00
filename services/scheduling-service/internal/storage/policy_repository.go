package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/libs/db"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
)

type PolicyRepository struct {
	pool *db.Pool
}

func NewPolicyRepository(pool *db.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, professionalID string) (availability.SchedulePolicy, error) {
	var policy availability.SchedulePolicy
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes, time_zone
		FROM schedule_policies
		WHERE professional_id = $1
	`, professionalID).Scan(&policy.DurationMinutes, &policy.TimeZone)
	if err != nil {
		return availability.SchedulePolicy{}, mapErr(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, start_minute, end_minute
		FROM schedule_weekly_windows
		WHERE professional_id = $1
		ORDER BY position ASC
	`, professionalID)
	if err != nil {
		return availability.SchedulePolicy{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day        string
			start, end int
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return availability.SchedulePolicy{}, err
		}
		wd, err := availability.ParseWeekday(day)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("window for %s: %w", professionalID, err)
		}
		policy.Windows = append(policy.Windows, availability.WeeklyWindow{
			DayOfWeek: wd,
			Start:     availability.TimeOfDay(start),
			End:       availability.TimeOfDay(end),
		})
	}
	if rows.Err() != nil {
		return availability.SchedulePolicy{}, rows.Err()
	}
	return policy, nil
}

// ReplacePolicy overwrites the header and every window of a professional's
// policy. Callers own the transaction.
func (r *PolicyRepository) ReplacePolicy(ctx context.Context, tx pgx.Tx, professionalID string, policy availability.SchedulePolicy) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_policies (professional_id, duration_minutes, time_zone)
		VALUES ($1, $2, $3)
		ON CONFLICT (professional_id) DO UPDATE
		SET duration_minutes = EXCLUDED.duration_minutes,
			time_zone = EXCLUDED.time_zone,
			updated_at = now()
	`, professionalID, policy.DurationMinutes, policy.TimeZone)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_weekly_windows WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}

	if len(policy.Windows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, w := range policy.Windows {
		batch.Queue(`
			INSERT INTO schedule_weekly_windows (professional_id, day_of_week, start_minute, end_minute, position)
			VALUES ($1, $2, $3, $4, $5)
		`, professionalID, availability.WeekdayName(w.DayOfWeek), w.Start.Minutes(), w.End.Minutes(), i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

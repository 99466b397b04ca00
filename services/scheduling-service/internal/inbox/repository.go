package inbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/storage"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record marks an event as received inside tx. It reports false for an event
// that was already recorded; tx is then aborted and must be rolled back.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID string, eventType string) (bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if storage.IsDuplicate(err) {
		return false, nil
	}
	return false, err
}

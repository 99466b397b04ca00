package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("slot overlaps an existing slot")
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	return hasCode(err, pgExclusionViolation)
}

func IsDuplicate(err error) bool {
	return hasCode(err, pgUniqueViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case hasCode(err, pgExclusionViolation):
		return ErrConflict
	default:
		return err
	}
}

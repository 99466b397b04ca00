package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapErr(t *testing.T) {
	if got := mapErr(pgx.ErrNoRows); !errors.Is(got, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", got)
	}
	overlap := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"})
	if got := mapErr(overlap); !errors.Is(got, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", got)
	}
	other := errors.New("boom")
	if got := mapErr(other); got != other {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if mapErr(nil) != nil {
		t.Fatal("expected nil")
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsConflict(&pgconn.PgError{Code: "23P01"}) || !IsConflict(ErrConflict) {
		t.Fatal("expected conflict")
	}
	if !IsDuplicate(&pgconn.PgError{Code: "23505"}) || IsDuplicate(&pgconn.PgError{Code: "23P01"}) {
		t.Fatal("unexpected duplicate classification")
	}
	if !IsNotFound(pgx.ErrNoRows) || !IsNotFound(ErrNotFound) || IsNotFound(errors.New("x")) {
		t.Fatal("unexpected not-found classification")
	}
}

package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestNotFoundMapsNoRows(t *testing.T) {
	if !errors.Is(notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows)), trust.ErrNotFound) {
		t.Fatalf("expected ErrNoRows mapped to ErrNotFound")
	}
	other := errors.New("boom")
	if notFound(other) != other {
		t.Fatalf("expected other errors passed through")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("expected 23505 detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) || isUniqueViolation(nil) {
		t.Fatalf("expected only unique violations detected")
	}
}

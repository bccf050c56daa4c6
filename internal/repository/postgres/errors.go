package postgres

import (
	"errors"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// notFound maps pgx.ErrNoRows onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return trust.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

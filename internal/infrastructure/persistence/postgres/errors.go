package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsSerializationFailure checks for serialization and deadlock aborts.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isConnectionError reports failures that say nothing about the data:
// lost connections, refused dials, admin shutdowns and closed pools.
func isConnectionError(err error) bool {
	if errors.Is(err, ErrConnectionClosed) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 57: operator intervention.
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57")
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// classify maps a driver error onto the shared error kinds.
func classify(domain, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError(domain, op, shared.ErrTimeout, "query deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return err
	case IsUniqueViolation(err):
		return shared.WrapError(domain, op, shared.ErrRaceDetected, "unique constraint violated", err)
	case IsSerializationFailure(err), isConnectionError(err):
		return shared.WrapError(domain, op, shared.ErrStoreUnavailable, "postgres unavailable", err)
	default:
		return fmt.Errorf("%s.%s: %w", domain, op, err)
	}
}

package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateSerialization       = "40001"
	sqlStateDeadlock            = "40P01"
)

// sqlState pulls the SQLSTATE and constraint out of either Postgres driver's error.
func sqlState(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// matches falls back to driver message text for sqlite, which only reports strings.
func matches(err error, state, constraint string, sqliteMarkers ...string) bool {
	if err == nil {
		return false
	}
	if code, name, ok := sqlState(err); ok {
		return code == state && (constraint == "" || name == constraint)
	}
	msg := err.Error()
	for _, marker := range sqliteMarkers {
		if strings.Contains(msg, marker) {
			return constraint == "" || strings.Contains(msg, constraint)
		}
	}
	return false
}

// IsUniqueViolation reports a unique constraint failure, optionally on one named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return matches(err, sqlStateUniqueViolation, constraint, "duplicate key value", "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports an insert that referenced a row deleted underneath it.
func IsForeignKeyViolation(err error, constraint string) bool {
	return matches(err, sqlStateForeignKeyViolation, constraint, "violates foreign key constraint", "FOREIGN KEY constraint failed")
}

// IsRetryable reports serialization failures and deadlocks.
func IsRetryable(err error) bool {
	code, _, ok := sqlState(err)
	return ok && (code == sqlStateSerialization || code == sqlStateDeadlock)
}

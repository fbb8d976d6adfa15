package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrRetriesExceeded is returned when a transaction is retried more than
// the max allowed number of times without success.
var ErrRetriesExceeded = errors.New("store: tx retries exceeded")

// MapSQLError attempts to interpret a given error as a database-agnostic
// SQL error, grounded on internal/db/sqlerrors.go's classification of the
// same sqlite3 driver errors.
func MapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return parseSqliteError(sqliteErr)
	}
	return err
}

func parseSqliteError(sqliteErr sqlite3.Error) error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {

			return &ErrUniqueConstraintViolation{DBError: sqliteErr}
		}
		return fmt.Errorf("sqlite constraint error: %w", sqliteErr)

	case sqlite3.ErrBusy:
		return &ErrSerializationError{DBError: sqliteErr}

	case sqlite3.ErrLocked:
		return &ErrDeadlockError{DBError: sqliteErr}

	case sqlite3.ErrError:
		errMsg := sqliteErr.Error()
		if strings.Contains(errMsg, "no such table") {
			return &ErrSchemaError{DBError: sqliteErr}
		}
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrUniqueConstraintViolation is a database-agnostic unique-constraint
// violation.
type ErrUniqueConstraintViolation struct {
	DBError error
}

func (e ErrUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("unique constraint violation: %v", e.DBError)
}

func (e ErrUniqueConstraintViolation) Unwrap() error { return e.DBError }

// ErrSerializationError represents a transaction that couldn't be
// serialized against other concurrent transactions and should be retried.
type ErrSerializationError struct {
	DBError error
}

func (e ErrSerializationError) Error() string { return e.DBError.Error() }
func (e ErrSerializationError) Unwrap() error { return e.DBError }

// ErrDeadlockError represents a cyclic lock dependency between
// transactions.
type ErrDeadlockError struct {
	DBError error
}

func (e ErrDeadlockError) Error() string { return e.DBError.Error() }
func (e ErrDeadlockError) Unwrap() error { return e.DBError }

// ErrSchemaError represents a query against a schema that doesn't match
// what the database actually has (e.g. a missing table).
type ErrSchemaError struct {
	DBError error
}

func (e ErrSchemaError) Error() string { return e.DBError.Error() }
func (e ErrSchemaError) Unwrap() error { return e.DBError }

// IsSerializationError reports whether err is a serialization error.
func IsSerializationError(err error) bool {
	var e *ErrSerializationError
	return errors.As(err, &e)
}

// IsDeadlockError reports whether err is a deadlock error.
func IsDeadlockError(err error) bool {
	var e *ErrDeadlockError
	return errors.As(err, &e)
}

// IsSerializationOrDeadlockError reports whether err is either kind of
// error the transaction executor should retry on.
func IsSerializationOrDeadlockError(err error) bool {
	return IsSerializationError(err) || IsDeadlockError(err)
}

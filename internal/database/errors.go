package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("database: not found")
	// ErrConflict indicates a primary key or unique constraint rejected a write.
	ErrConflict = errors.New("database: conflict")
	// ErrObservationExists is returned when a write or rename targets a key that is taken.
	ErrObservationExists = fmt.Errorf("%w: observation already exists", ErrConflict)
	// ErrAttachmentExists is returned when an attachment path is already stored.
	ErrAttachmentExists = fmt.Errorf("%w: attachment already exists", ErrConflict)
	// ErrUnknownReference indicates a foreign key violation, such as an unknown tag.
	ErrUnknownReference = errors.New("database: unknown reference")
	// ErrConstraint indicates a CHECK or NOT NULL constraint rejected a row.
	ErrConstraint = errors.New("database: constraint violated")
	// ErrFatal marks unrecoverable storage states: corruption, wrong file type, schema mismatch.
	ErrFatal = errors.New("database: fatal storage error")
)

var errMissingContext = errors.New("gateway: missing database context")

// classify attaches one of the sentinels above to a driver error, keeping the
// original in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_SCHEMA:
		return fmt.Errorf("%w: %w", ErrFatal, err)
	case sqlite3.SQLITE_CONSTRAINT:
		msg := se.Error()
		switch {
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%w: %w", ErrUnknownReference, err)
		case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
			return fmt.Errorf("%w: %w", ErrConflict, err)
		default:
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		}
	}
	return err
}

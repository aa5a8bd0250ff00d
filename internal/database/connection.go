// Package database owns the SQLite storage handle and the gateway that turns
// field-notes operations into atomic statements.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/fieldnotes-md/fieldnotes/db/migrations"
	"github.com/fieldnotes-md/fieldnotes/internal/config"
	sqldb "github.com/fieldnotes-md/fieldnotes/internal/database/sqlc"

	// Import SQLite driver for database/sql
	_ "modernc.org/sqlite"
)

// SchemaVersion is the migration version this build expects.
const SchemaVersion = 1

// Context is the explicitly owned storage handle shared by every repository.
type Context struct {
	DB       *sql.DB
	Queries  *sqldb.Queries
	Notifier *Notifier
	Path     string
}

// CreateDatabase opens the database at dbPath (the configured default when
// empty, a private in-memory database for ":memory:") and applies migrations.
func CreateDatabase(dbPath string) (*Context, error) {
	path := dbPath
	if path == "" {
		path = config.DefaultDatabasePath()
	}

	useMemory := path == ":memory:"

	if !useMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	if useMemory {
		dsn = fmt.Sprintf("file:fieldnotes-%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)&_txlock=immediate", uuid.NewString())
	} else {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		path = absPath
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate",
			filepath.ToSlash(absPath))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if useMemory {
		// Every connection to a shared-cache memory database sees the same data,
		// but one connection avoids table-level lock contention.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %w", ErrFatal, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrFatal, err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Context{
		DB:       db,
		Queries:  sqldb.New(db),
		Notifier: NewNotifier(),
		Path:     path,
	}, nil
}

// CloseDatabase closes the database connection.
func CloseDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	if ctx.Notifier != nil {
		ctx.Notifier.Close()
	}
	return ctx.DB.Close()
}

// ClearDatabase removes all data from the database in one transaction.
func ClearDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}

	tx, err := ctx.DB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	queries := queriesFromContext(ctx).WithTx(tx)
	bg := context.Background()

	steps := []struct {
		table string
		run   func(context.Context) error
	}{
		{TableObservationTags, queries.DeleteAllObservationTags},
		{TableAttachments, queries.DeleteAllAttachments},
		{TableObservations, queries.DeleteAllObservations},
		{TableTags, queries.DeleteAllTags},
	}
	for _, step := range steps {
		if err := step.run(bg); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("failed to delete %s: %w (rollback error: %w)", step.table, err, rbErr)
			}
			return fmt.Errorf("failed to delete %s: %w", step.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear transaction: %w", err)
	}

	if ctx.Notifier != nil {
		ctx.Notifier.Publish(AllTables...)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: failed to initialise migrate driver: %w", ErrFatal, err)
	}

	sourceDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("%w: failed to load embedded migrations: %w", ErrFatal, err)
	}
	defer func() {
		_ = sourceDriver.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: failed to create migrator: %w", ErrFatal, err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: failed to apply migrations: %w", ErrFatal, err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("%w: failed to read schema version: %w", ErrFatal, err)
	}
	if dirty || version != SchemaVersion {
		return fmt.Errorf("%w: schema version %d (dirty=%t), expected %d", ErrFatal, version, dirty, SchemaVersion)
	}

	return nil
}

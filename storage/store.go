package storage

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/c360/fedwire/errors"
)

//go:embed schema.sql
var schemaSQL string

// Options configures a Store.
type Options struct {
	// Domain is the local instance domain, used to derive durable remote
	// identifiers for locally created entities.
	Domain string
}

// Store provides durable storage for the federated entity graph.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db     *sql.DB
	domain string
}

// Open creates or opens a SQLite database at the given path and applies
// the required pragmas and schema. This function is idempotent.
func Open(path string, opts Options) (*Store, error) {
	if opts.Domain == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "Open", "domain validation")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Open", "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WrapTransient(err, "Store", "Open", "connect database")
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "Store", "Open", "apply schema")
	}

	return &Store{db: db, domain: opts.Domain}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.WrapFatal(
				fmt.Errorf("execute %q: %w", pragma, err),
				"Store", "applyPragmas", "apply pragma")
		}
	}

	return nil
}

// Tx is the scoped transaction handle passed to WithTx callbacks.
type Tx struct {
	tx     *sql.Tx
	domain string
}

// WithTx runs fn inside one transaction. Any error or panic on the way
// out rolls the transaction back, so a failing multi-step write leaves
// no visible state change.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "WithTx", "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = dbTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: dbTx, domain: s.domain}); err != nil {
		_ = dbTx.Rollback()
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "WithTx", "commit transaction")
	}
	return nil
}

// isUniqueViolation reports whether err is a natural-key constraint
// rejection from SQLite.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// timeToDB renders a timestamp for storage, empty for the zero time.
func timeToDB(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// timeFromDB parses a stored timestamp, zero for the empty string.
func timeFromDB(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

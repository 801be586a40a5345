// Package cache provides the local, derivable ticket-state store.
//
// The cache is a SQLite index over the event log, tagged with the log
// revision it was built from. It has no durability contract of its own:
// any detected corruption or staleness is resolved by discarding it and
// replaying the log, never by repair logic.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tkt-dev/tkt/internal/tkterr"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// revisionKey is the cache_meta row recording the log revision.
const revisionKey = "log_revision"

// Cache is a queryable store of current ticket and tombstone state.
// Uses SQLite with WAL mode for concurrent read access.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "open cache database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "connect to cache database")
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY under the synchronous execution model.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying handle for the passthrough query surface.
// Passthrough carries no safety contract; prefer Cache methods.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// Query executes a read against the cache and returns the rows.
// Callers are responsible for closing the returned rows.
func (c *Cache) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "query cache")
	}
	return rows, nil
}

// Revision returns the log revision the cache was built from, or ""
// if the cache has never been populated.
func (c *Cache) Revision(ctx context.Context) (string, error) {
	var rev string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_meta WHERE key = ?`, revisionKey).Scan(&rev)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", tkterr.Wrap(tkterr.CodeStorage, err, "read cache revision")
	}
	return rev, nil
}

// Fresh reports whether the cache reflects the given log revision.
func (c *Cache) Fresh(ctx context.Context, logRev string) (bool, error) {
	rev, err := c.Revision(ctx)
	if err != nil {
		return false, err
	}
	return rev != "" && rev == logRev, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return tkterr.Wrap(tkterr.CodeStorage, err, "apply %s", pragma)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "apply cache schema")
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
// The cache is disposable, so migrations may simply bump the version: an
// old-format cache is rebuilt from the log rather than migrated in place.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "get user_version")
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "set user_version")
	}
	return nil
}

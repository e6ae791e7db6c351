package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"
)

const (
	DriverLibSQL = "libsql"
	DriverSQLite = "sqlite"
)

// Open creates a SQLite connection through the named driver and configures it
// for concurrent use: WAL journal mode, 5 s busy timeout, foreign keys enabled.
//
// The pool is pinned to a single connection. SQLite admits one writer at a
// time, so callers queue on the pool instead of failing with SQLITE_BUSY, and
// per-connection PRAGMAs and ":memory:" databases stay consistent.
func Open(ctx context.Context, driver, path string) (*sql.DB, error) {
	var dsn string
	switch driver {
	case DriverLibSQL:
		dsn = "file:" + path
	case DriverSQLite:
		dsn = path
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// libSQL rejects Exec for PRAGMAs that return rows, but some PRAGMAs
	// (like foreign_keys=ON) return nothing. Use QueryContext and drain rows
	// to handle both cases uniformly.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

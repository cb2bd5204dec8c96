package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/riskgraph/addrrisk/internal/domain"
	_ "modernc.org/sqlite"
)

// sqliteCacheSizeKiB sizes SQLite's page cache for the Community tier,
// which runs single-process and serves the ego-graph BFS directly
// against this file: each node visited during a traversal issues its
// own GetTransactionsByAddress query, so a larger cache keeps the
// working set of a single analysis's transaction history resident
// instead of re-reading it from disk on every hop.
const sqliteCacheSizeKiB = 64000

// openSQLite opens a SQLite database connection.
// Uses modernc.org/sqlite for pure Go implementation (no CGO required).
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./addrrisk.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string with pragmas for performance. SQLite
	// reads a negative cache_size value as a size in KiB, so the cache
	// holds sqliteCacheSizeKiB KiB in total.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=cache_size(-%d)",
		path, sqliteCacheSizeKiB,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writers; the Community tier runs a single
	// process, but concurrent analyses still contend for one
	// connection on writes (SaveTransaction, SaveAnalysis). Limit to
	// one open connection so database/sql's pool doesn't hand out a
	// second handle that would just block on SQLITE_BUSY anyway.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

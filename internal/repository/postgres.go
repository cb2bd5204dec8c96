package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
	_ "github.com/lib/pq"
)

// postgresStatementTimeout bounds how long any single query is allowed
// to run. Ego-graph BFS issues one GetTransactionsByAddress query per
// node it visits, and a pipeline stuck waiting on a single slow query
// stalls the whole analysis; killing the query and returning an error
// lets the caller fail one address instead of hanging indefinitely.
const postgresStatementTimeout = 10 * time.Second

// openPostgres opens a PostgreSQL database connection tuned for the
// read-heavy ego-graph traversal pattern: many short, tenant-scoped
// point queries per analysis rather than a few large ones.
func openPostgres(cfg domain.RepositoryConfig) (*sql.DB, error) {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}

	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}

	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "addrrisk"
	}

	// Build connection string. application_name lets a DBA pick
	// addrrisk's connections out of pg_stat_activity, and
	// statement_timeout caps a single runaway BFS query rather than
	// the whole connection pool backing up behind it.
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=addrrisk statement_timeout=%d",
		host,
		port,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		dbname,
		getSSLMode(cfg.PostgresSSLMode),
		postgresStatementTimeout.Milliseconds(),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return db, nil
}

func getSSLMode(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

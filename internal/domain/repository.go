// Package domain defines the core interfaces and types for the
// address risk scoring engine.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction ledger: the backing store consumed through the
	// TransactionSource adapter (internal/txsource).
	SaveTransaction(ctx context.Context, tenantID string, address string, tx *TxRecord) error
	GetTransactionsByAddress(ctx context.Context, tenantID string, address string, maxN int) ([]*TxRecord, error)

	// Custom exposure rule configuration.
	SaveCustomRule(ctx context.Context, tenantID string, rule *CustomRule) error
	GetCustomRule(ctx context.Context, tenantID string, ruleID string) (*CustomRule, error)
	ListCustomRules(ctx context.Context, tenantID string) ([]*CustomRule, error)

	// Rule bundle configuration.
	SaveRuleBundle(ctx context.Context, tenantID string, bundle *RuleBundle) error
	GetRuleBundle(ctx context.Context, tenantID string, bundleID string) (*RuleBundle, error)
	ListRuleBundles(ctx context.Context, tenantID string) ([]*RuleBundle, error)
	DeleteRuleBundle(ctx context.Context, tenantID string, bundleID string) error

	// Completed analyses (audit trail; not consulted by the hard core).
	SaveAnalysis(ctx context.Context, tenantID string, analysis *Analysis) error
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*Analysis, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores one address's view of a transaction with
// tenant isolation. The same on-chain transaction may be stored once
// per address it touches, since the transaction ledger is queried by
// address, not by global hash.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, address string, tx *domain.TxRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tags, _ := json.Marshal(tx.Tags)

	query := `
		INSERT INTO transactions (
			hash, tenant_id, address, from_address, to_address,
			amount, type, tags, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash, tenant_id, address) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.Hash, tenantID, address, tx.From, tx.To,
		tx.Amount, string(tx.Type), string(tags),
		tx.Timestamp, time.Now().UTC(),
	)
	return err
}

// GetTransactionsByAddress retrieves the newest-first transaction
// history for an address with tenant isolation, capped at maxN rows.
func (r *SQLRepository) GetTransactionsByAddress(ctx context.Context, tenantID string, address string, maxN int) ([]*domain.TxRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if maxN <= 0 {
		maxN = 1000
	}

	query := `
		SELECT hash, from_address, to_address, amount, type, tags, timestamp
		FROM transactions
		WHERE tenant_id = ? AND address = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, address, maxN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TxRecord
	for rows.Next() {
		var tx domain.TxRecord
		var txType string
		var tags string

		if err := rows.Scan(&tx.Hash, &tx.From, &tx.To, &tx.Amount, &txType, &tags, &tx.Timestamp); err != nil {
			return nil, err
		}

		tx.Type = domain.TxRecordType(txType)
		if tags != "" {
			json.Unmarshal([]byte(tags), &tx.Tags)
		}
		records = append(records, &tx)
	}

	return records, rows.Err()
}

// SaveCustomRule stores a tenant-authored custom rule configuration.
func (r *SQLRepository) SaveCustomRule(ctx context.Context, tenantID string, rule *domain.CustomRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO custom_rules (
			id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetCustomRule retrieves a custom rule configuration with tenant
// isolation.
func (r *SQLRepository) GetCustomRule(ctx context.Context, tenantID string, ruleID string) (*domain.CustomRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM custom_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var rule domain.CustomRule
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &bands, &rule.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &rule.Bands)

	return &rule, nil
}

// ListCustomRules retrieves all active custom rules for a tenant.
func (r *SQLRepository) ListCustomRules(ctx context.Context, tenantID string) ([]*domain.CustomRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM custom_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.CustomRule
	for rows.Next() {
		var rule domain.CustomRule
		var bands string
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &bands, &rule.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &rule.Bands)
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveRuleBundle stores a weighted rule bundle configuration.
func (r *SQLRepository) SaveRuleBundle(ctx context.Context, tenantID string, bundle *domain.RuleBundle) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	rules, _ := json.Marshal(bundle.Rules)

	enabled := 0
	if bundle.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_bundles (
			id, tenant_id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			rules = excluded.rules,
			alert_threshold = excluded.alert_threshold,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		bundle.ID, tenantID, bundle.Name, bundle.Description,
		bundle.Version, string(rules), bundle.AlertThreshold, enabled,
		now, now,
	)
	return err
}

// GetRuleBundle retrieves a rule bundle configuration with tenant
// isolation.
func (r *SQLRepository) GetRuleBundle(ctx context.Context, tenantID string, bundleID string) (*domain.RuleBundle, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, alert_threshold, enabled
		FROM rule_bundles
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var bundle domain.RuleBundle
	var rules string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, bundleID).Scan(
		&bundle.ID, &bundle.TenantID, &bundle.Name, &bundle.Description,
		&bundle.Version, &rules, &bundle.AlertThreshold, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	bundle.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(rules), &bundle.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse bundle rules: %w", err)
	}

	return &bundle, nil
}

// ListRuleBundles retrieves all active rule bundles for a tenant.
func (r *SQLRepository) ListRuleBundles(ctx context.Context, tenantID string) ([]*domain.RuleBundle, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, alert_threshold, enabled
		FROM rule_bundles
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []*domain.RuleBundle
	for rows.Next() {
		var bundle domain.RuleBundle
		var rules string
		var enabled int

		if err := rows.Scan(
			&bundle.ID, &bundle.TenantID, &bundle.Name, &bundle.Description,
			&bundle.Version, &rules, &bundle.AlertThreshold, &enabled,
		); err != nil {
			return nil, err
		}

		bundle.Enabled = enabled == 1
		if err := json.Unmarshal([]byte(rules), &bundle.Rules); err != nil {
			return nil, fmt.Errorf("failed to parse bundle rules for %s: %w", bundle.ID, err)
		}
		bundles = append(bundles, &bundle)
	}

	return bundles, rows.Err()
}

// DeleteRuleBundle soft-deletes a rule bundle by setting enabled = 0.
func (r *SQLRepository) DeleteRuleBundle(ctx context.Context, tenantID string, bundleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE rule_bundles
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, bundleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveAnalysis stores a completed analysis as an audit record.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var breakdown, matches, prediction string
	var score int
	var level string
	if analysis.Score != nil {
		b, _ := json.Marshal(analysis.Score.Breakdown)
		breakdown = string(b)
		score = analysis.Score.Total
		level = string(analysis.Score.Level)
	}
	if len(analysis.Matches) > 0 {
		m, _ := json.Marshal(analysis.Matches)
		matches = string(m)
	}
	if analysis.Prediction != nil {
		p, _ := json.Marshal(analysis.Prediction)
		prediction = string(p)
	}
	metadata, _ := json.Marshal(analysis.Metadata)

	query := `
		INSERT INTO analyses (
			id, tenant_id, address, chain, asset, score, level,
			breakdown, matches, prediction, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, analysis.Address, analysis.Chain, analysis.Asset,
		score, level, breakdown, matches, prediction, string(metadata),
		analysis.CreatedAt,
	)
	return err
}

// GetAnalysis retrieves a persisted analysis by ID with tenant
// isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, address, chain, asset, score, level,
			   breakdown, matches, prediction, metadata, created_at
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.Analysis
	var score int
	var level, breakdown, matches, prediction, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&a.ID, &a.TenantID, &a.Address, &a.Chain, &a.Asset,
		&score, &level, &breakdown, &matches, &prediction, &metadata, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Score = &domain.RiskScore{Total: score, Level: domain.RiskLevel(level)}
	if breakdown != "" {
		json.Unmarshal([]byte(breakdown), &a.Score.Breakdown)
	}
	if matches != "" {
		json.Unmarshal([]byte(matches), &a.Matches)
	}
	if prediction != "" {
		var pred domain.Prediction
		json.Unmarshal([]byte(prediction), &pred)
		a.Prediction = &pred
	}
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

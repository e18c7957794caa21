// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelsec/kestrel/internal/domain"
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

// SaveVerdict stores an evaluation verdict.
func (r *SQLRepository) SaveVerdict(ctx context.Context, evaluationID string, verdict *domain.Verdict) error {
	if evaluationID == "" {
		return fmt.Errorf("%w: evaluationID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	partial := 0
	if verdict.Partial {
		partial = 1
	}

	query := `
		INSERT INTO verdicts (
			evaluation_id, record_id, catalogue_id, catalogue_version,
			raw_score, score, severity, confidence, partial, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		evaluationID, verdict.ID, verdict.CatalogueID, verdict.CatalogueVersion,
		verdict.RawScore, verdict.Score, string(verdict.Severity), verdict.Confidence,
		partial, string(payload), time.Now().UTC(),
	)
	return err
}

// GetVerdict retrieves a verdict by evaluation ID.
func (r *SQLRepository) GetVerdict(ctx context.Context, evaluationID string) (*domain.Verdict, error) {
	if evaluationID == "" {
		return nil, fmt.Errorf("%w: evaluationID is required", ErrInvalidInput)
	}

	query := `
		SELECT payload
		FROM verdicts
		WHERE evaluation_id = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), evaluationID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict payload: %w", err)
	}

	return &verdict, nil
}

// SaveExplanation stores an evaluation trace.
func (r *SQLRepository) SaveExplanation(ctx context.Context, exp *domain.Explanation) error {
	if exp == nil || exp.EvaluationID == "" {
		return fmt.Errorf("%w: evaluationID is required", ErrInvalidInput)
	}

	matches, err := json.Marshal(exp.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	partial := 0
	if exp.Partial {
		partial = 1
	}

	query := `
		INSERT INTO explanations (
			evaluation_id, record_id, catalogue_id, catalogue_version,
			matches, partial, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		exp.EvaluationID, exp.RecordID, exp.CatalogueID, exp.CatalogueVersion,
		string(matches), partial, time.Now().UTC(),
	)
	return err
}

// GetExplanation retrieves an evaluation trace by evaluation ID.
func (r *SQLRepository) GetExplanation(ctx context.Context, evaluationID string) (*domain.Explanation, error) {
	if evaluationID == "" {
		return nil, fmt.Errorf("%w: evaluationID is required", ErrInvalidInput)
	}

	query := `
		SELECT evaluation_id, record_id, catalogue_id, catalogue_version, matches, partial
		FROM explanations
		WHERE evaluation_id = ?
	`

	var exp domain.Explanation
	var matches string
	var partial int

	err := r.db.QueryRowContext(ctx, r.rebind(query), evaluationID).Scan(
		&exp.EvaluationID, &exp.RecordID, &exp.CatalogueID, &exp.CatalogueVersion,
		&matches, &partial,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	exp.Partial = partial == 1
	if err := json.Unmarshal([]byte(matches), &exp.Matches); err != nil {
		return nil, fmt.Errorf("failed to parse explanation matches: %w", err)
	}

	return &exp, nil
}

// SaveSignatureConfig stores a custom signature configuration.
func (r *SQLRepository) SaveSignatureConfig(ctx context.Context, cfg *domain.SignatureConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("%w: signature id is required", ErrInvalidInput)
	}

	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO signature_configs (
			id, catalogue_id, category, severity, weight, sig_group,
			expression, description, remediation, version, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			catalogue_id = excluded.catalogue_id,
			category = excluded.category,
			severity = excluded.severity,
			weight = excluded.weight,
			sig_group = excluded.sig_group,
			expression = excluded.expression,
			description = excluded.description,
			remediation = excluded.remediation,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cfg.ID, cfg.CatalogueID, cfg.Category, string(cfg.Severity), cfg.Weight, cfg.Group,
		cfg.Expression, cfg.Description, cfg.Remediation, cfg.Version, enabled,
		now, now,
	)
	return err
}

// GetSignatureConfig retrieves the latest enabled version of a signature config.
func (r *SQLRepository) GetSignatureConfig(ctx context.Context, id string) (*domain.SignatureConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: signature id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, catalogue_id, category, severity, weight, sig_group,
			   expression, description, remediation, version, enabled
		FROM signature_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	cfg, err := r.scanSignatureConfig(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ListSignatureConfigs retrieves all enabled signature configs for a catalogue.
func (r *SQLRepository) ListSignatureConfigs(ctx context.Context, catalogueID string) ([]*domain.SignatureConfig, error) {
	if catalogueID == "" {
		return nil, fmt.Errorf("%w: catalogueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, catalogue_id, category, severity, weight, sig_group,
			   expression, description, remediation, version, enabled
		FROM signature_configs
		WHERE catalogue_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), catalogueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.SignatureConfig
	for rows.Next() {
		cfg, err := r.scanSignatureConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// DeleteSignatureConfig soft-deletes a signature config by setting enabled = 0.
func (r *SQLRepository) DeleteSignatureConfig(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: signature id is required", ErrInvalidInput)
	}

	query := `
		UPDATE signature_configs
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
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

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanSignatureConfig(row rowScanner) (*domain.SignatureConfig, error) {
	var cfg domain.SignatureConfig
	var severity string
	var group sql.NullString
	var description, remediation sql.NullString
	var enabled int

	if err := row.Scan(
		&cfg.ID, &cfg.CatalogueID, &cfg.Category, &severity, &cfg.Weight, &group,
		&cfg.Expression, &description, &remediation, &cfg.Version, &enabled,
	); err != nil {
		return nil, err
	}

	cfg.Severity = domain.Severity(severity)
	cfg.Group = group.String
	cfg.Description = description.String
	cfg.Remediation = remediation.String
	cfg.Enabled = enabled == 1

	return &cfg, nil
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

package domain

import (
	"context"
	"time"
)

// Repository defines the interface for verdict and explanation
// retention plus custom signature configuration storage. Nothing on the
// analysis hot path reads it; writes happen off-path via the worker.
type Repository interface {
	// Verdict retention
	SaveVerdict(ctx context.Context, evaluationID string, verdict *Verdict) error
	GetVerdict(ctx context.Context, evaluationID string) (*Verdict, error)

	// Explanation retention for the explain endpoint
	SaveExplanation(ctx context.Context, exp *Explanation) error
	GetExplanation(ctx context.Context, evaluationID string) (*Explanation, error)

	// Custom CEL signature configurations
	SaveSignatureConfig(ctx context.Context, cfg *SignatureConfig) error
	GetSignatureConfig(ctx context.Context, id string) (*SignatureConfig, error)
	ListSignatureConfigs(ctx context.Context, catalogueID string) ([]*SignatureConfig, error)
	DeleteSignatureConfig(ctx context.Context, id string) error

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

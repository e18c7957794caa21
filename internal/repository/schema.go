package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaVerdicts = `
CREATE TABLE IF NOT EXISTS verdicts (
    evaluation_id TEXT PRIMARY KEY,
    record_id TEXT NOT NULL,
    catalogue_id TEXT NOT NULL,
    catalogue_version TEXT NOT NULL,
    raw_score INTEGER NOT NULL,
    score INTEGER NOT NULL,
    severity TEXT NOT NULL,
    confidence INTEGER NOT NULL,
    partial INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_record ON verdicts(record_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_catalogue ON verdicts(catalogue_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_severity ON verdicts(severity);
CREATE INDEX IF NOT EXISTS idx_verdicts_created ON verdicts(created_at);
`

const schemaExplanations = `
CREATE TABLE IF NOT EXISTS explanations (
    evaluation_id TEXT PRIMARY KEY,
    record_id TEXT NOT NULL,
    catalogue_id TEXT NOT NULL,
    catalogue_version TEXT NOT NULL,
    matches TEXT NOT NULL,
    partial INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_explanations_record ON explanations(record_id);
CREATE INDEX IF NOT EXISTS idx_explanations_catalogue ON explanations(catalogue_id);
`

// schemaSignatureConfigs stores operator-defined expression signatures.
// These extend the built-in catalogues at reload time.
const schemaSignatureConfigs = `
CREATE TABLE IF NOT EXISTS signature_configs (
    id TEXT NOT NULL,
    catalogue_id TEXT NOT NULL,
    category TEXT NOT NULL,
    severity TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 0,
    sig_group TEXT,
    expression TEXT NOT NULL,
    description TEXT,
    remediation TEXT,
    version TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_signature_configs_catalogue ON signature_configs(catalogue_id);
CREATE INDEX IF NOT EXISTS idx_signature_configs_enabled ON signature_configs(catalogue_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaVerdicts,
		schemaExplanations,
		schemaSignatureConfigs,
	}
}

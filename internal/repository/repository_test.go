package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/kestrelsec/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetVerdict", func(t *testing.T) {
		verdict := &domain.Verdict{
			ID:               "url-001",
			RawScore:         80,
			Score:            80,
			Severity:         "PHISHING",
			Confidence:       86,
			CatalogueID:      "url-phishing",
			CatalogueVersion: "2.4.0",
			Indicators: []domain.Indicator{
				{Type: "credential_harvesting", Severity: "CRITICAL", Description: "credentials embedded in URL"},
			},
			Recommendations: []string{"Block the URL at the gateway"},
		}

		if err := repo.SaveVerdict(ctx, "eval-001", verdict); err != nil {
			t.Fatalf("SaveVerdict failed: %v", err)
		}

		retrieved, err := repo.GetVerdict(ctx, "eval-001")
		if err != nil {
			t.Fatalf("GetVerdict failed: %v", err)
		}

		if retrieved.ID != verdict.ID {
			t.Errorf("expected ID %s, got %s", verdict.ID, retrieved.ID)
		}
		if retrieved.Score != verdict.Score {
			t.Errorf("expected Score %d, got %d", verdict.Score, retrieved.Score)
		}
		if len(retrieved.Indicators) != 1 {
			t.Errorf("expected 1 indicator, got %d", len(retrieved.Indicators))
		}
	})

	t.Run("GetVerdictNotFound", func(t *testing.T) {
		_, err := repo.GetVerdict(ctx, "no-such-eval")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndGetExplanation", func(t *testing.T) {
		exp := &domain.Explanation{
			EvaluationID:     "eval-002",
			RecordID:         "url-002",
			CatalogueID:      "url-phishing",
			CatalogueVersion: "2.4.0",
			Matches: []domain.MatchTrace{
				{SignatureID: "no_https", Category: "transport", Weight: 10},
				{SignatureID: "suspicious_tld", Category: "infrastructure", Weight: 15},
			},
		}

		if err := repo.SaveExplanation(ctx, exp); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}

		retrieved, err := repo.GetExplanation(ctx, "eval-002")
		if err != nil {
			t.Fatalf("GetExplanation failed: %v", err)
		}

		if retrieved.RecordID != exp.RecordID {
			t.Errorf("expected RecordID %s, got %s", exp.RecordID, retrieved.RecordID)
		}
		if len(retrieved.Matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(retrieved.Matches))
		}
		if retrieved.Matches[0].SignatureID != "no_https" {
			t.Errorf("expected first match no_https, got %s", retrieved.Matches[0].SignatureID)
		}
	})

	t.Run("GetExplanationNotFound", func(t *testing.T) {
		_, err := repo.GetExplanation(ctx, "no-such-eval")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndGetSignatureConfig", func(t *testing.T) {
		cfg := &domain.SignatureConfig{
			ID:          "custom-punycode",
			CatalogueID: "url-phishing",
			Category:    "deception",
			Severity:    domain.SeverityHigh,
			Weight:      25,
			Expression:  `record.host.contains("xn--")`,
			Description: "Punycode-encoded hostname",
			Version:     "1.0.0",
			Enabled:     true,
		}

		if err := repo.SaveSignatureConfig(ctx, cfg); err != nil {
			t.Fatalf("SaveSignatureConfig failed: %v", err)
		}

		retrieved, err := repo.GetSignatureConfig(ctx, "custom-punycode")
		if err != nil {
			t.Fatalf("GetSignatureConfig failed: %v", err)
		}

		if retrieved.Expression != cfg.Expression {
			t.Errorf("expected expression %q, got %q", cfg.Expression, retrieved.Expression)
		}
		if retrieved.Weight != 25 {
			t.Errorf("expected weight 25, got %d", retrieved.Weight)
		}
		if retrieved.Severity != domain.SeverityHigh {
			t.Errorf("expected severity HIGH, got %s", retrieved.Severity)
		}
	})

	t.Run("SignatureConfigUpsert", func(t *testing.T) {
		cfg := &domain.SignatureConfig{
			ID:          "custom-upsert",
			CatalogueID: "url-phishing",
			Category:    "deception",
			Severity:    domain.SeverityMedium,
			Weight:      10,
			Expression:  `record.url_length > 100.0`,
			Version:     "1.0.0",
			Enabled:     true,
		}

		if err := repo.SaveSignatureConfig(ctx, cfg); err != nil {
			t.Fatalf("initial save failed: %v", err)
		}

		cfg.Weight = 20
		if err := repo.SaveSignatureConfig(ctx, cfg); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		retrieved, err := repo.GetSignatureConfig(ctx, "custom-upsert")
		if err != nil {
			t.Fatalf("GetSignatureConfig failed: %v", err)
		}
		if retrieved.Weight != 20 {
			t.Errorf("expected updated weight 20, got %d", retrieved.Weight)
		}
	})

	t.Run("ListSignatureConfigs", func(t *testing.T) {
		configs, err := repo.ListSignatureConfigs(ctx, "url-phishing")
		if err != nil {
			t.Fatalf("ListSignatureConfigs failed: %v", err)
		}
		if len(configs) < 2 {
			t.Errorf("expected at least 2 configs, got %d", len(configs))
		}
	})

	t.Run("ListSignatureConfigsEmptyCatalogue", func(t *testing.T) {
		configs, err := repo.ListSignatureConfigs(ctx, "flow-ddos")
		if err != nil {
			t.Fatalf("ListSignatureConfigs failed: %v", err)
		}
		if len(configs) != 0 {
			t.Errorf("expected no configs, got %d", len(configs))
		}
	})

	t.Run("DeleteSignatureConfig", func(t *testing.T) {
		if err := repo.DeleteSignatureConfig(ctx, "custom-upsert"); err != nil {
			t.Fatalf("DeleteSignatureConfig failed: %v", err)
		}

		// Soft-deleted configs are no longer returned
		_, err := repo.GetSignatureConfig(ctx, "custom-upsert")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteSignatureConfigNotFound", func(t *testing.T) {
		err := repo.DeleteSignatureConfig(ctx, "never-existed")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNewRepositoryUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		query    string
		expected string
	}{
		{
			name:     "SQLiteUnchanged",
			driver:   "sqlite",
			query:    "SELECT * FROM verdicts WHERE evaluation_id = ?",
			expected: "SELECT * FROM verdicts WHERE evaluation_id = ?",
		},
		{
			name:     "PostgresNumbered",
			driver:   "postgres",
			query:    "INSERT INTO t (a, b) VALUES (?, ?)",
			expected: "INSERT INTO t (a, b) VALUES ($1, $2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SQLRepository{driver: tt.driver}
			got := r.rebind(tt.query)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

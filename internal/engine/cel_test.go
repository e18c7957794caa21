package engine

import (
	"context"
	"testing"

	"github.com/kestrelsec/kestrel/internal/domain"
)

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler()
	if err != nil {
		t.Fatalf("failed to create compiler: %v", err)
	}
	return c
}

func TestCompilerValidate(t *testing.T) {
	c := newTestCompiler(t)

	t.Run("ValidExpression", func(t *testing.T) {
		err := c.Validate(&domain.SignatureConfig{
			ID:         "punycode",
			Expression: `record.host.contains("xn--")`,
			Weight:     20,
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("EmptyExpression", func(t *testing.T) {
		if err := c.Validate(&domain.SignatureConfig{ID: "x"}); err == nil {
			t.Error("expected error for empty expression")
		}
	})

	t.Run("SyntaxError", func(t *testing.T) {
		err := c.Validate(&domain.SignatureConfig{
			ID:         "broken",
			Expression: "this is not CEL ((",
		})
		if err == nil {
			t.Error("expected error for invalid syntax")
		}
	})

	t.Run("NonBoolOutput", func(t *testing.T) {
		err := c.Validate(&domain.SignatureConfig{
			ID:         "numeric",
			Expression: "1 + 2",
		})
		if err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("NegativeWeight", func(t *testing.T) {
		err := c.Validate(&domain.SignatureConfig{
			ID:         "neg",
			Expression: "true",
			Weight:     -5,
		})
		if err == nil {
			t.Error("expected error for negative weight")
		}
	})
}

func TestCompiledSignature(t *testing.T) {
	c := newTestCompiler(t)

	sig, err := c.Compile(&domain.SignatureConfig{
		ID:          "custom-punycode",
		Category:    "homograph",
		Severity:    domain.SeverityHigh,
		Weight:      25,
		Expression:  `record.host.contains("xn--")`,
		Description: "punycode host",
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	t.Run("FiresOnMatch", func(t *testing.T) {
		ev, fired := sig.Evaluate(domain.Record{"host": "xn--pypal-4ve.com"})
		if !fired {
			t.Fatal("expected signature to fire")
		}
		if ev.Fields["expression"] == "" {
			t.Error("expected expression in evidence fields")
		}
	})

	t.Run("SilentOnNoMatch", func(t *testing.T) {
		if _, fired := sig.Evaluate(domain.Record{"host": "example.com"}); fired {
			t.Error("expected no fire for plain host")
		}
	})

	t.Run("EvalErrorIsNoMatch", func(t *testing.T) {
		// Missing field makes the expression error; that must read
		// as no-match, not a fault.
		if _, fired := sig.Evaluate(domain.Record{}); fired {
			t.Error("expected no fire when field is absent")
		}
	})
}

func TestCompileAll(t *testing.T) {
	c := newTestCompiler(t)

	cfgs := []*domain.SignatureConfig{
		{ID: "good", Expression: "record.score_hint == 1.0", Weight: 10, Enabled: true},
		{ID: "disabled", Expression: "true", Weight: 10, Enabled: false},
		{ID: "broken", Expression: "((", Weight: 10, Enabled: true},
	}

	sigs := c.CompileAll(cfgs)

	if len(sigs) != 1 {
		t.Fatalf("expected 1 compiled signature, got %d", len(sigs))
	}
	if sigs[0].ID != "good" {
		t.Errorf("expected signature 'good', got %s", sigs[0].ID)
	}
}

func TestCustomSignatureInEvaluation(t *testing.T) {
	c := newTestCompiler(t)
	eng := New()

	sig, err := c.Compile(&domain.SignatureConfig{
		ID:         "long-path",
		Category:   "custom",
		Severity:   domain.SeverityMedium,
		Weight:     30,
		Expression: `record.path.size() > 10`,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	cat := testCatalogue(sig)

	verdict, _, err := eng.Evaluate(context.Background(), cat, domain.Record{
		"path": "/a/very/long/path",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.RawScore != 30 {
		t.Errorf("expected raw score 30 from custom signature, got %d", verdict.RawScore)
	}
}

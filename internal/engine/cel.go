package engine

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// Compiler turns operator-defined CEL signature configs into catalogue
// signatures. The environment exposes the normalized record as the
// "record" map, so expressions stay pure functions of the record.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates a CEL compiler for custom signatures.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Validate compiles an expression without building a signature.
func (c *Compiler) Validate(cfg *domain.SignatureConfig) error {
	_, err := c.compile(cfg)
	return err
}

// Compile builds a catalogue signature whose predicate evaluates the
// configured CEL expression. Evaluation errors are treated as no-match:
// a bad custom expression must never fault a whole catalogue.
func (c *Compiler) Compile(cfg *domain.SignatureConfig) (domain.Signature, error) {
	program, err := c.compile(cfg)
	if err != nil {
		return domain.Signature{}, err
	}

	expr := cfg.Expression
	id := cfg.ID

	return domain.Signature{
		ID:          cfg.ID,
		Category:    cfg.Category,
		Severity:    cfg.Severity,
		Weight:      cfg.Weight,
		Group:       cfg.Group,
		Description: cfg.Description,
		Remediation: cfg.Remediation,
		Evaluate: func(rec domain.Record) (domain.Evidence, bool) {
			out, _, err := program.Eval(map[string]any{
				"record": map[string]any(rec),
			})
			if err != nil {
				slog.Debug("custom signature eval error",
					"signature_id", id,
					"error", err,
				)
				return domain.Evidence{}, false
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				return domain.Evidence{
					Summary: "custom expression matched",
					Fields:  map[string]string{"expression": expr},
				}, true
			}
			return domain.Evidence{}, false
		},
	}, nil
}

// CompileAll compiles every enabled config, skipping and logging the
// ones that fail so one bad expression cannot block a reload.
func (c *Compiler) CompileAll(cfgs []*domain.SignatureConfig) []domain.Signature {
	sigs := make([]domain.Signature, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		sig, err := c.Compile(cfg)
		if err != nil {
			slog.Warn("skipping invalid custom signature",
				"signature_id", cfg.ID,
				"error", err,
			)
			continue
		}
		sigs = append(sigs, sig)
	}
	return sigs
}

func (c *Compiler) compile(cfg *domain.SignatureConfig) (cel.Program, error) {
	if cfg == nil || cfg.Expression == "" {
		return nil, fmt.Errorf("signature expression is required")
	}
	if cfg.Weight < 0 {
		return nil, fmt.Errorf("signature %s: weight must be non-negative", cfg.ID)
	}

	ast, issues := c.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile signature %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("signature %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for signature %s: %w", cfg.ID, err)
	}
	return program, nil
}

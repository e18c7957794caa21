package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelsec/kestrel/internal/analyzers"
	"github.com/kestrelsec/kestrel/internal/catalog"
	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/engine"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	registry   *catalog.Registry
	engine     *engine.Engine
	compiler   *engine.Compiler
	recognizer *analyzers.Recognizer
	version    string
	batchCap   int
	explainTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, registry *catalog.Registry, eng *engine.Engine, compiler *engine.Compiler, version string, gw domain.GatewayConfig) *Handler {
	batchCap := gw.BatchCap
	if batchCap <= 0 {
		batchCap = 100
	}
	explainTTL := time.Duration(gw.ExplainTTL) * time.Second
	if explainTTL <= 0 {
		explainTTL = 15 * time.Minute
	}

	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		registry:   registry,
		engine:     eng,
		compiler:   compiler,
		recognizer: analyzers.NewRecognizer(),
		version:    version,
		batchCap:   batchCap,
		explainTTL: explainTTL,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// An empty registry cannot serve any analysis request
	if len(h.registry.IDs()) == 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"service":           "kestrel",
		"version":           h.version,
		"catalogues_loaded": h.registry.Versions(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ModelInfo describes the loaded catalogues and their versions.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	type catalogueInfo struct {
		ID         string `json:"id"`
		Version    string `json:"version"`
		Signatures int    `json:"signatures"`
		Aggregates int    `json:"aggregates,omitempty"`
	}

	infos := make([]catalogueInfo, 0)
	for _, id := range h.registry.IDs() {
		cat, err := h.registry.Get(id)
		if err != nil {
			continue
		}
		infos = append(infos, catalogueInfo{
			ID:         cat.ID,
			Version:    cat.Version,
			Signatures: len(cat.Signatures),
			Aggregates: len(cat.Aggregates),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":    "kestrel",
		"version":    h.version,
		"catalogues": infos,
		"capabilities": []string{
			"url_analysis",
			"certificate_grading",
			"flow_analysis",
			"audit_analysis",
			"policy_analysis",
			"pattern_recognition",
			"conflict_detection",
			"custom_signatures",
		},
	})
}

// Explain serves the stored evaluation trace for an evaluation ID.
// The cache is checked first; the repository backs it for older traces.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evaluationID := chi.URLParam(r, "id")

	if evaluationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.cache != nil {
		exp, err := h.cache.GetExplanation(ctx, evaluationID)
		if err != nil {
			slog.Warn("explanation cache read failed", "evaluation_id", evaluationID, "error", err)
		}
		if exp != nil {
			writeJSON(w, http.StatusOK, explainResponse(exp))
			return
		}
	}

	if h.repo != nil {
		exp, err := h.repo.GetExplanation(ctx, evaluationID)
		if err == nil && exp != nil {
			// Re-warm the cache for subsequent reads
			if h.cache != nil {
				_ = h.cache.SetExplanation(ctx, exp, h.explainTTL)
			}
			writeJSON(w, http.StatusOK, explainResponse(exp))
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": domain.ErrUnknownExplanation.Error() + ": " + evaluationID,
	})
}

func explainResponse(exp *domain.Explanation) map[string]any {
	return map[string]any{
		"evaluationId":      exp.EvaluationID,
		"recordId":          exp.RecordID,
		"catalogueId":       exp.CatalogueID,
		"catalogueVersion":  exp.CatalogueVersion,
		"matches":           exp.Matches,
		"contributedWeight": exp.ContributedWeight(),
		"partial":           exp.Partial,
	}
}

// ListCatalogues returns a summary of every loaded catalogue.
func (h *Handler) ListCatalogues(w http.ResponseWriter, r *http.Request) {
	versions := h.registry.Versions()

	type summary struct {
		ID      string `json:"id"`
		Version string `json:"version"`
	}

	out := make([]summary, 0, len(versions))
	for _, id := range h.registry.IDs() {
		out = append(out, summary{ID: id, Version: versions[id]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"catalogues": out,
		"count":      len(out),
	})
}

// GetCatalogue returns the full signature listing of one catalogue.
func (h *Handler) GetCatalogue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cat, err := h.registry.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "catalogue not found: " + id,
		})
		return
	}

	writeJSON(w, http.StatusOK, cat)
}

// GetVerdict returns a persisted verdict by evaluation ID.
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	evaluationID := chi.URLParam(r, "id")

	if h.repo != nil {
		verdict, err := h.repo.GetVerdict(r.Context(), evaluationID)
		if err == nil && verdict != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"evaluationId": evaluationID,
				"verdict":      verdict,
			})
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "verdict not found: " + evaluationID,
	})
}

// GetSignature returns the latest enabled version of a custom signature.
func (h *Handler) GetSignature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.repo != nil {
		cfg, err := h.repo.GetSignatureConfig(r.Context(), id)
		if err == nil && cfg != nil {
			writeJSON(w, http.StatusOK, cfg)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "signature not found: " + id,
	})
}

// DeleteSignature disables a custom signature. The catalogue drops it
// on the next reload.
func (h *Handler) DeleteSignature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteSignatureConfig(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "signature not found: " + id,
		})
		return
	}

	slog.Info("custom signature disabled", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Signature disabled. Call POST /signatures/reload to apply changes.",
	})
}

// CreateSignature validates and persists a custom expression signature.
// The signature becomes active on the next POST /signatures/reload.
func (h *Handler) CreateSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cfg domain.SignatureConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if cfg.ID == "" || cfg.CatalogueID == "" || cfg.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, catalogueId, and expression are required",
		})
		return
	}
	if cfg.Weight < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "weight must be non-negative",
		})
		return
	}
	if _, err := h.registry.Get(cfg.CatalogueID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown catalogue: " + cfg.CatalogueID,
		})
		return
	}

	// Compile once to reject bad expressions before they are stored
	if err := h.compiler.Validate(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid expression: " + err.Error(),
		})
		return
	}

	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	// New signatures are live once reloaded; DELETE disables them.
	cfg.Enabled = true

	if h.repo != nil {
		if err := h.repo.SaveSignatureConfig(ctx, &cfg); err != nil {
			slog.Error("failed to save signature config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save signature",
			})
			return
		}
	}

	slog.Info("custom signature created", "id", cfg.ID, "catalogue_id", cfg.CatalogueID)
	writeJSON(w, http.StatusOK, map[string]any{
		"signature": cfg,
		"message":   "Signature created. Call POST /signatures/reload to apply changes.",
	})
}

// ReloadSignatures recompiles stored custom signatures and swaps each
// extended catalogue into the registry atomically.
func (h *Handler) ReloadSignatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "repository not available",
		})
		return
	}

	loaded := 0
	for _, id := range h.registry.IDs() {
		cfgs, err := h.repo.ListSignatureConfigs(ctx, id)
		if err != nil {
			slog.Error("failed to list signature configs", "catalogue_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load signatures from storage",
			})
			return
		}
		if len(cfgs) == 0 {
			continue
		}

		custom := h.compiler.CompileAll(cfgs)
		if err := h.registry.Extend(id, custom); err != nil {
			slog.Error("failed to extend catalogue", "catalogue_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to reload signatures: " + err.Error(),
			})
			return
		}
		loaded += len(custom)
	}

	slog.Info("custom signatures reloaded", "count", loaded)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "signatures reloaded successfully",
		"count":   loaded,
	})
}

// publishVerdict caches the trace and hands the verdict to the worker
// via the event bus. Failures are logged, never surfaced: persistence
// is off the analysis hot path.
func (h *Handler) publishVerdict(ctx context.Context, evaluationID string, verdict *domain.Verdict, traces []domain.MatchTrace) *domain.Explanation {
	exp := engine.BuildExplanation(evaluationID, verdict, traces)

	if h.cache != nil {
		if err := h.cache.SetExplanation(ctx, exp, h.explainTTL); err != nil {
			slog.Warn("failed to cache explanation", "evaluation_id", evaluationID, "error", err)
		}
	}

	if h.bus != nil {
		payload, err := json.Marshal(domain.VerdictEvent{
			EvaluationID: evaluationID,
			Verdict:      verdict,
			Explanation:  exp,
		})
		if err == nil {
			err = h.bus.Publish(ctx, domain.TopicVerdictCreated, payload)
		}
		if err != nil {
			slog.Error("failed to publish verdict event", "evaluation_id", evaluationID, "error", err)
		}
	}

	return exp
}

// writeEngineError maps engine errors onto the HTTP status surface.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSchemaViolation), errors.Is(err, domain.ErrBatchTooLarge):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownExplanation):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		slog.Error("evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelsec/kestrel/internal/analyzers"
	"github.com/kestrelsec/kestrel/internal/catalog"
	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/normalize"
)

// Per-endpoint ceilings. The configured batch cap applies beneath them.
const (
	urlBatchCeiling  = 50
	flowBatchCeiling = 100
)

// AnalyzeResponse is the common envelope for single-record analysis.
type AnalyzeResponse struct {
	EvaluationID string          `json:"evaluationId"`
	Verdict      *domain.Verdict `json:"verdict"`
}

// AnalyzeURL handles POST /url/analyze.
func (h *Handler) AnalyzeURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in normalize.URLInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if in.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": domain.ErrSchemaViolation.Error() + ": url is required",
		})
		return
	}

	cat, err := h.registry.Get(catalog.URLCatalogueID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	verdict, traces, err := h.engine.Evaluate(ctx, cat, normalize.URL(in), nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	evaluationID := uuid.New().String()
	h.publishVerdict(ctx, evaluationID, verdict, traces)

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		EvaluationID: evaluationID,
		Verdict:      verdict,
	})
}

// URLBatchRequest is the request body for POST /url/batch-analyze.
type URLBatchRequest struct {
	URLs []normalize.URLInput `json:"urls"`
}

// URLBatchResponse carries one verdict per accepted URL, in input order.
// Entries without a url value are dropped and listed in droppedIds.
type URLBatchResponse struct {
	Results    []AnalyzeResponse `json:"results"`
	DroppedIDs []string          `json:"droppedIds,omitempty"`
}

// BatchAnalyzeURL handles POST /url/batch-analyze.
func (h *Handler) BatchAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req URLBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	limit := h.batchCap
	if limit > urlBatchCeiling {
		limit = urlBatchCeiling
	}
	if len(req.URLs) > limit {
		writeEngineError(w, fmt.Errorf("%w: %d urls exceeds cap of %d",
			domain.ErrBatchTooLarge, len(req.URLs), limit))
		return
	}

	cat, err := h.registry.Get(catalog.URLCatalogueID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := URLBatchResponse{Results: make([]AnalyzeResponse, 0, len(req.URLs))}
	for _, in := range req.URLs {
		if in.URL == "" {
			resp.DroppedIDs = append(resp.DroppedIDs, in.ID)
			continue
		}

		verdict, traces, err := h.engine.Evaluate(ctx, cat, normalize.URL(in), nil)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		evaluationID := uuid.New().String()
		h.publishVerdict(ctx, evaluationID, verdict, traces)
		resp.Results = append(resp.Results, AnalyzeResponse{
			EvaluationID: evaluationID,
			Verdict:      verdict,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// CertResponse extends the analysis envelope with the letter grade.
type CertResponse struct {
	EvaluationID string          `json:"evaluationId"`
	Verdict      *domain.Verdict `json:"verdict"`
	Grade        string          `json:"grade"`
}

// AnalyzeCert handles POST /cert/analyze.
func (h *Handler) AnalyzeCert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in normalize.CertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if in.Validity.NotBefore.IsZero() || in.Validity.NotAfter.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": domain.ErrSchemaViolation.Error() + ": validity.notBefore and validity.notAfter are required",
		})
		return
	}

	cat, err := h.registry.Get(catalog.CertCatalogueID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rec := normalize.Cert(in, time.Now().UTC())
	verdict, traces, err := h.engine.Evaluate(ctx, cat, rec, nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	evaluationID := uuid.New().String()
	h.publishVerdict(ctx, evaluationID, verdict, traces)

	writeJSON(w, http.StatusOK, CertResponse{
		EvaluationID: evaluationID,
		Verdict:      verdict,
		Grade:        catalog.GradeFor(verdict.Score),
	})
}

// FlowResponse extends the analysis envelope with the threat call.
type FlowResponse struct {
	EvaluationID string          `json:"evaluationId"`
	Verdict      *domain.Verdict `json:"verdict"`
	IsThreat     bool            `json:"isThreat"`
	ThreatType   string          `json:"threatType,omitempty"`
}

// ClassifyFlow handles POST /flow/classify.
func (h *Handler) ClassifyFlow(w http.ResponseWriter, r *http.Request) {
	var in normalize.FlowInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if in.Protocol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": domain.ErrSchemaViolation.Error() + ": protocol is required",
		})
		return
	}

	resp, err := h.classifyOneFlow(r, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) classifyOneFlow(r *http.Request, in normalize.FlowInput) (*FlowResponse, error) {
	ctx := r.Context()

	cat, err := h.registry.Get(catalog.FlowCatalogueID)
	if err != nil {
		return nil, err
	}

	verdict, traces, err := h.engine.Evaluate(ctx, cat, normalize.Flow(in), nil)
	if err != nil {
		return nil, err
	}

	evaluationID := uuid.New().String()
	h.publishVerdict(ctx, evaluationID, verdict, traces)

	threatType := catalog.FlowThreatType(cat, traces)
	return &FlowResponse{
		EvaluationID: evaluationID,
		Verdict:      verdict,
		IsThreat:     threatType != "",
		ThreatType:   threatType,
	}, nil
}

// FlowBatchRequest is the request body for POST /flow/batch-classify.
type FlowBatchRequest struct {
	Flows []normalize.FlowInput `json:"flows"`
}

// FlowBatchResponse carries one classification per accepted flow.
type FlowBatchResponse struct {
	Results    []FlowResponse `json:"results"`
	DroppedIDs []string       `json:"droppedIds,omitempty"`
}

// BatchClassifyFlow handles POST /flow/batch-classify.
func (h *Handler) BatchClassifyFlow(w http.ResponseWriter, r *http.Request) {
	var req FlowBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	limit := h.batchCap
	if limit > flowBatchCeiling {
		limit = flowBatchCeiling
	}
	if len(req.Flows) > limit {
		writeEngineError(w, fmt.Errorf("%w: %d flows exceeds cap of %d",
			domain.ErrBatchTooLarge, len(req.Flows), limit))
		return
	}

	resp := FlowBatchResponse{Results: make([]FlowResponse, 0, len(req.Flows))}
	for _, in := range req.Flows {
		if in.Protocol == "" {
			resp.DroppedIDs = append(resp.DroppedIDs, in.ID)
			continue
		}

		one, err := h.classifyOneFlow(r, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp.Results = append(resp.Results, *one)
	}

	writeJSON(w, http.StatusOK, resp)
}

// AuditRequest is the request body for POST /audit/detect.
type AuditRequest struct {
	Events []normalize.AuditEvent `json:"events"`
}

// ActorVerdict pairs a per-actor group verdict with its evaluation ID.
type ActorVerdict struct {
	EvaluationID string              `json:"evaluationId"`
	Group        domain.GroupVerdict `json:"group"`
}

// AuditResponse reports per-actor verdicts plus recognized behavioural
// patterns over the whole batch.
type AuditResponse struct {
	Actors   []ActorVerdict             `json:"actors"`
	Patterns []analyzers.PatternFinding `json:"patterns"`
}

// AuditDetect handles POST /audit/detect. Events are grouped by actor;
// aggregate signatures score each group and the pattern recognizer runs
// over the raw batch.
func (h *Handler) AuditDetect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Events) > h.batchCap {
		writeEngineError(w, fmt.Errorf("%w: %d events exceeds cap of %d",
			domain.ErrBatchTooLarge, len(req.Events), h.batchCap))
		return
	}

	cat, err := h.registry.Get(catalog.AuditCatalogueID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	records := normalize.AuditBatch(req.Events)
	groups, traces, err := h.engine.EvaluateGroups(ctx, cat, "actor", records, nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := AuditResponse{
		Actors:   make([]ActorVerdict, 0, len(groups)),
		Patterns: h.recognizer.Recognize(req.Events),
	}

	if h.bus != nil && len(resp.Patterns) > 0 {
		payload, err := json.Marshal(resp.Patterns)
		if err == nil {
			err = h.bus.Publish(ctx, domain.TopicPatternDetected, payload)
		}
		if err != nil {
			slog.Error("failed to publish pattern event", "patterns", len(resp.Patterns), "error", err)
		}
	}

	for _, g := range groups {
		evaluationID := uuid.New().String()
		verdict := g.Verdict
		h.publishVerdict(ctx, evaluationID, &verdict, traces[g.Key])
		resp.Actors = append(resp.Actors, ActorVerdict{
			EvaluationID: evaluationID,
			Group:        g,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// PolicyValidate handles POST /policy/validate: a single policy scored
// against the IAM catalogue.
func (h *Handler) PolicyValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in normalize.Policy
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if in.ID == "" || in.Effect == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": domain.ErrSchemaViolation.Error() + ": id and effect are required",
		})
		return
	}

	cat, err := h.registry.Get(catalog.PolicyCatalogueID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	verdict, traces, err := h.engine.Evaluate(ctx, cat, normalize.PolicyRecord(in), nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	evaluationID := uuid.New().String()
	h.publishVerdict(ctx, evaluationID, verdict, traces)

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		EvaluationID: evaluationID,
		Verdict:      verdict,
	})
}

// PolicyConflictsRequest is the request body for POST /policy/conflicts.
type PolicyConflictsRequest struct {
	Policies []normalize.Policy `json:"policies"`
}

// PolicyConflicts handles POST /policy/conflicts: pairwise effect
// conflict detection across a policy set.
func (h *Handler) PolicyConflicts(w http.ResponseWriter, r *http.Request) {
	var req PolicyConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Policies) > h.batchCap {
		writeEngineError(w, fmt.Errorf("%w: %d policies exceeds cap of %d",
			domain.ErrBatchTooLarge, len(req.Policies), h.batchCap))
		return
	}

	for _, p := range req.Policies {
		if p.ID == "" || p.Effect == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": domain.ErrSchemaViolation.Error() + ": every policy needs id and effect",
			})
			return
		}
	}

	findings := analyzers.DetectConflicts(req.Policies)

	writeJSON(w, http.StatusOK, map[string]any{
		"conflicts": findings,
		"count":     len(findings),
	})
}

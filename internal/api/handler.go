package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riskgraph/addrrisk/internal/customrules"
	"github.com/riskgraph/addrrisk/internal/domain"
	"github.com/riskgraph/addrrisk/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	pipeline     *pipeline.Pipeline
	customRules  *customrules.Engine
	bundleEngine *customrules.BundleEngine
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, pl *pipeline.Pipeline, customRules *customrules.Engine, bundleEngine *customrules.BundleEngine, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		pipeline:     pl,
		customRules:  customRules,
		bundleEngine: bundleEngine,
		version:      version,
	}
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Asset   string `json:"asset,omitempty"`
}

// Analyze handles POST /analyze requests, running the full pipeline
// for one address and returning its risk score.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Chain == "" || req.Address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "chain and address are required",
		})
		return
	}

	analysis, err := h.pipeline.Analyze(ctx, tenantID, req.Chain, req.Address, req.Asset)
	if err != nil {
		slog.Error("analysis failed", "address", req.Address, "chain", req.Chain, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis", "id", analysis.ID, "error", err)
		}
	}

	if h.bus != nil {
		if payload, err := json.Marshal(analysis.ToResponse()); err == nil {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
				slog.Error("failed to publish analysis event", "id", analysis.ID, "error", err)
			}
			if analysis.Score != nil && analysis.Score.Level == domain.RiskLevelCritical {
				if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisAlert, payload); err != nil {
					slog.Error("failed to publish analysis alert", "id", analysis.ID, "error", err)
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, analysis.ToResponse())
}

// GetAnalysis retrieves a previously persisted analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, id)
	if err != nil {
		slog.Error("failed to get analysis", "id", id, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis.ToResponse())
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ============================================================================
// CUSTOM RULE HANDLERS
// ============================================================================

// CreateCustomRuleRequest is the request body for creating a custom rule.
type CreateCustomRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// ListCustomRules returns every custom rule persisted for the tenant.
func (h *Handler) ListCustomRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rules, err := h.repo.ListCustomRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list custom rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list custom rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// GetCustomRule retrieves a custom rule by ID.
func (h *Handler) GetCustomRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule, err := h.repo.GetCustomRule(ctx, tenantID, ruleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateCustomRule validates, persists, and hot-loads a tenant-authored
// CEL exposure rule.
func (h *Handler) CreateCustomRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateCustomRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.CustomRule{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     1,
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	if h.customRules != nil {
		if err := h.customRules.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveCustomRule(ctx, tenantID, rule); err != nil {
			slog.Error("failed to save custom rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	if h.customRules != nil && rule.Enabled {
		if err := h.customRules.LoadRule(rule); err != nil {
			slog.Error("failed to hot-load custom rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("custom rule created", "id", rule.ID, "name", rule.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, rule)
}

// ReloadCustomRules reloads every enabled custom rule for the tenant
// from the repository into the engine.
func (h *Handler) ReloadCustomRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil || h.customRules == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	rules, err := h.repo.ListCustomRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list custom rules for reload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from repository",
		})
		return
	}

	if err := h.customRules.ReloadRules(rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("custom rules reloaded", "tenant_id", tenantID, "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "custom rules reloaded successfully",
		"count":   len(rules),
	})
}

// ============================================================================
// RULE BUNDLE HANDLERS
// ============================================================================

// CreateRuleBundleRequest is the request body for creating a rule bundle.
type CreateRuleBundleRequest struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description,omitempty"`
	Rules          []domain.RuleBundleWeight `json:"rules"`
	AlertThreshold float64                   `json:"alertThreshold"`
	Enabled        bool                      `json:"enabled"`
}

// ListRuleBundles returns every rule bundle persisted for the tenant.
func (h *Handler) ListRuleBundles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	bundles, err := h.repo.ListRuleBundles(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rule bundles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rule bundles",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bundles": bundles,
		"count":   len(bundles),
	})
}

// GetRuleBundle retrieves a rule bundle by ID.
func (h *Handler) GetRuleBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	bundleID := chi.URLParam(r, "id")

	if bundleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "bundle id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	bundle, err := h.repo.GetRuleBundle(ctx, tenantID, bundleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "bundle not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// CreateRuleBundle persists a new rule bundle and reloads the bundle
// engine with every enabled bundle for the tenant.
func (h *Handler) CreateRuleBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleBundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || len(req.Rules) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and at least one rule are required",
		})
		return
	}

	bundle := &domain.RuleBundle{
		ID:             req.ID,
		TenantID:       tenantID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        1,
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleBundle(ctx, tenantID, bundle); err != nil {
			slog.Error("failed to save rule bundle", "id", bundle.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save bundle",
			})
			return
		}
	}

	h.reloadBundlesLocked(ctx, tenantID)

	slog.Info("rule bundle created", "id", bundle.ID, "name", bundle.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, bundle)
}

// UpdateRuleBundle updates an existing rule bundle.
func (h *Handler) UpdateRuleBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	bundleID := chi.URLParam(r, "id")

	if bundleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "bundle id is required",
		})
		return
	}

	var req CreateRuleBundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	bundle := &domain.RuleBundle{
		ID:             bundleID,
		TenantID:       tenantID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        1,
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleBundle(ctx, tenantID, bundle); err != nil {
			slog.Error("failed to update rule bundle", "id", bundleID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update bundle",
			})
			return
		}
	}

	h.reloadBundlesLocked(ctx, tenantID)

	slog.Info("rule bundle updated", "id", bundleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, bundle)
}

// DeleteRuleBundle deletes a rule bundle and reloads the bundle engine.
func (h *Handler) DeleteRuleBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	bundleID := chi.URLParam(r, "id")

	if bundleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "bundle id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteRuleBundle(ctx, tenantID, bundleID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "bundle not found",
			})
			return
		}
	}

	h.reloadBundlesLocked(ctx, tenantID)

	slog.Info("rule bundle deleted", "id", bundleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "bundle deleted and engine reloaded",
	})
}

// reloadBundlesLocked reloads the bundle engine from the repository's
// current set of rule bundles for the tenant, logging failures rather
// than failing the caller's CRUD request.
func (h *Handler) reloadBundlesLocked(ctx context.Context, tenantID string) {
	if h.repo == nil || h.bundleEngine == nil {
		return
	}
	bundles, err := h.repo.ListRuleBundles(ctx, tenantID)
	if err != nil {
		slog.Error("failed to reload rule bundles", "tenant_id", tenantID, "error", err)
		return
	}
	h.bundleEngine.LoadBundles(bundles)
}

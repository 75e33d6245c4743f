package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
)

func (h *Handler) getWeights(c echo.Context) error {
	cfg, version := h.engine.Configs().Current()
	return c.JSON(http.StatusOK, map[string]any{
		"weights": cfg.Weights,
		"version": version,
	})
}

type weightsUpdateRequest struct {
	Weights map[string]int `json:"weights"`
}

func (h *Handler) updateWeights(c echo.Context) error {
	var req weightsUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	patch := &domain.RiskConfigPatch{Weights: req.Weights}
	version, err := h.applyConfigUpdate(c.Request().Context(), c, patch, "risk_weights",
		func(cfg *domain.RiskConfig) map[string]any { return map[string]any{"weights": cfg.Weights} })
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "risk weights updated",
		"version": version,
	})
}

func (h *Handler) getThresholds(c echo.Context) error {
	cfg, version := h.engine.Configs().Current()
	return c.JSON(http.StatusOK, map[string]any{
		"thresholds": cfg.Thresholds,
		"version":    version,
	})
}

func (h *Handler) updateThresholds(c echo.Context) error {
	var req domain.RiskThresholds
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	patch := &domain.RiskConfigPatch{Thresholds: &req}
	version, err := h.applyConfigUpdate(c.Request().Context(), c, patch, "risk_thresholds",
		func(cfg *domain.RiskConfig) map[string]any { return map[string]any{"thresholds": cfg.Thresholds} })
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "risk thresholds updated",
		"version": version,
	})
}

func (h *Handler) getLists(c echo.Context) error {
	cfg, version := h.engine.Configs().Current()
	return c.JSON(http.StatusOK, map[string]any{
		"high_risk_countries":  cfg.HighRiskCountries,
		"high_risk_industries": cfg.HighRiskIndustries,
		"blacklisted_mccs":     cfg.BlacklistedMCCs,
		"version":              version,
	})
}

type listUpdateRequest struct {
	ListType string   `json:"list_type"`
	Items    []string `json:"items"`
}

func (h *Handler) updateList(c echo.Context) error {
	var req listUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	patch := &domain.RiskConfigPatch{}
	var configKey string
	var items func(cfg *domain.RiskConfig) []string
	switch req.ListType {
	case "countries":
		configKey = "high_risk_countries"
		items = func(cfg *domain.RiskConfig) []string { return cfg.HighRiskCountries }
		patch.HighRiskCountries = req.Items
	case "industries":
		configKey = "high_risk_industries"
		items = func(cfg *domain.RiskConfig) []string { return cfg.HighRiskIndustries }
		patch.HighRiskIndustries = req.Items
	case "mccs":
		configKey = "blacklisted_mccs"
		items = func(cfg *domain.RiskConfig) []string { return cfg.BlacklistedMCCs }
		patch.BlacklistedMCCs = req.Items
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "list_type must be countries, industries, or mccs"})
	}

	version, err := h.applyConfigUpdate(c.Request().Context(), c, patch, configKey,
		func(cfg *domain.RiskConfig) map[string]any { return map[string]any{"items": items(cfg)} })
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": configKey + " updated",
		"version": version,
	})
}

// applyConfigUpdate publishes a new configuration version and records the
// change on the audit trail. The before/after payloads are extracted from
// the stored versions themselves: version-1 is the exact base the published
// version was derived from, so concurrent writers cannot skew the pair.
func (h *Handler) applyConfigUpdate(ctx context.Context, c echo.Context, patch *domain.RiskConfigPatch, configKey string, payload func(cfg *domain.RiskConfig) map[string]any) (int64, error) {
	who := actor(c)
	store := h.engine.Configs()

	version, err := store.Update(ctx, patch, who)
	if err != nil {
		return 0, err
	}

	base, err := store.Get(version - 1)
	if err != nil {
		return 0, err
	}
	published, err := store.Get(version)
	if err != nil {
		return 0, err
	}

	after := payload(published)
	after["version"] = version
	entry := &domain.AuditEntry{
		Actor:       who,
		Action:      domain.AuditActionConfigChange,
		TargetID:    configKey,
		Description: "Risk configuration changed: " + configKey,
		Before:      payload(base),
		After:       after,
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		return 0, err
	}
	return version, nil
}

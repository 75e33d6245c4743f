package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/merchant"
)

type riskResponse struct {
	MerchantID     string           `json:"merchant_id"`
	RiskScore      int              `json:"risk_score"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	RiskReasons    []string         `json:"risk_reasons"`
	LastAssessedAt any              `json:"last_assessed_at,omitempty"`
}

// getMerchantRisk returns the merchant's current risk posture, served from
// the latest assessment (cache first, history store fall-through). With
// ?reassess=true a fresh assessment runs first.
func (h *Handler) getMerchantRisk(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if c.QueryParam("reassess") == "true" {
		if _, err := h.merchants.Reassess(ctx, id, actor(c)); err != nil {
			return respondError(c, err)
		}
	}

	result, err := h.engine.Latest(ctx, id)
	if err == nil {
		return c.JSON(http.StatusOK, riskResponse{
			MerchantID:     result.MerchantID,
			RiskScore:      result.Score,
			RiskLevel:      result.RiskLevel,
			RiskReasons:    result.Reasons,
			LastAssessedAt: result.AssessedAt,
		})
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return respondError(c, err)
	}

	// Never assessed: fall back to the merchant record, 404 if unknown.
	m, err := h.merchants.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, riskResponse{
		MerchantID:     m.MerchantID,
		RiskScore:      m.RiskScore,
		RiskLevel:      m.RiskLevel,
		RiskReasons:    m.RiskReasons,
		LastAssessedAt: m.LastAssessedAt,
	})
}

func (h *Handler) getRiskHistory(c echo.Context) error {
	results, err := h.engine.History(c.Request().Context(), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		return respondError(c, err)
	}

	summaries := make([]*domain.AssessmentSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, r.ToSummary())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"merchant_id": c.Param("id"),
		"history":     summaries,
	})
}

// recomputeRisk re-runs scoring against a historical configuration version
// for review purposes. Nothing is persisted.
func (h *Handler) recomputeRisk(c echo.Context) error {
	ctx := c.Request().Context()

	version, err := strconv.ParseInt(c.QueryParam("version"), 10, 64)
	if err != nil || version < 1 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "version must be a positive integer"})
	}

	m, err := h.merchants.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	snapshot := m.Snapshot()
	result, err := h.engine.RecomputeAt(ctx, &snapshot, version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) overrideRisk(c echo.Context) error {
	var req merchant.OverrideRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	m, err := h.merchants.OverrideRisk(c.Request().Context(), c.Param("id"), &req, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, riskResponse{
		MerchantID:     m.MerchantID,
		RiskScore:      m.RiskScore,
		RiskLevel:      m.RiskLevel,
		RiskReasons:    m.RiskReasons,
		LastAssessedAt: m.LastAssessedAt,
	})
}

func (h *Handler) reassessAll(c echo.Context) error {
	count, err := h.merchants.ReassessAll(c.Request().Context(), actor(c))
	if err != nil {
		// Partial sweeps still report how many assessments committed.
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":      "reassessment incomplete",
			"reassessed": count,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":    "reassessment complete",
		"reassessed": count,
	})
}

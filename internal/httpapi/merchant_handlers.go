package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/merchant"
)

func (h *Handler) onboardMerchant(c echo.Context) error {
	var req merchant.OnboardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	m, err := h.merchants.Onboard(c.Request().Context(), &req, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) listMerchants(c echo.Context) error {
	filter := domain.MerchantFilter{
		RiskLevel: domain.RiskLevel(c.QueryParam("risk_level")),
		Status:    domain.MerchantStatus(c.QueryParam("status")),
		Country:   c.QueryParam("country"),
		Offset:    queryInt(c, "offset", 0),
		Limit:     queryInt(c, "limit", 100),
	}

	merchants, err := h.merchants.List(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, merchants)
}

func (h *Handler) getMerchant(c echo.Context) error {
	m, err := h.merchants.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) updateMerchant(c echo.Context) error {
	var req merchant.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	m, err := h.merchants.Update(c.Request().Context(), c.Param("id"), &req, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) deleteMerchant(c echo.Context) error {
	id := c.Param("id")
	if err := h.merchants.Delete(c.Request().Context(), id, actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "merchant " + id + " deleted"})
}

func (h *Handler) approveMerchant(c echo.Context) error {
	m, err := h.merchants.Approve(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "merchant approved",
		"status":  m.Status,
	})
}

func (h *Handler) rejectMerchant(c echo.Context) error {
	m, err := h.merchants.Reject(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "merchant rejected",
		"status":  m.Status,
	})
}

func (h *Handler) dashboardStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.merchants.Stats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	open, err := h.alerts.List(ctx, domain.AlertFilter{Status: domain.AlertStatusOpen})
	if err != nil {
		return respondError(c, err)
	}
	_, version := h.engine.Configs().Current()

	return c.JSON(http.StatusOK, map[string]any{
		"total_merchants":    stats.TotalMerchants,
		"by_risk_level":      stats.ByRiskLevel,
		"by_status":          stats.ByStatus,
		"average_risk_score": stats.AverageScore,
		"high_risk_count":    stats.HighRiskCount,
		"open_alerts":        len(open),
		"config_version":     version,
	})
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
)

func (h *Handler) listAlerts(c echo.Context) error {
	filter := domain.AlertFilter{
		MerchantID: c.QueryParam("merchant_id"),
		Status:     domain.AlertStatus(c.QueryParam("status")),
		Severity:   domain.AlertSeverity(c.QueryParam("severity")),
		Limit:      queryInt(c, "limit", 100),
	}

	alerts, err := h.alerts.List(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) resolveAlert(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid alert id"})
	}

	var req domain.ResolveAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	who := actor(c)
	if req.ResolvedBy != "" {
		who = req.ResolvedBy
	}

	alert, err := h.alerts.Resolve(ctx, id, who, req.ResolutionNotes)
	if err != nil {
		return respondError(c, err)
	}

	entry := &domain.AuditEntry{
		Actor:       who,
		Action:      domain.AuditActionResolveAlert,
		TargetID:    alert.ID.String(),
		Description: "Alert resolved for merchant " + alert.MerchantID,
		After: map[string]any{
			"status":           string(alert.Status),
			"resolution_notes": alert.ResolutionNotes,
		},
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, alert)
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
)

func (h *Handler) queryAuditLog(c echo.Context) error {
	filter := domain.AuditFilter{
		Actor:    c.QueryParam("actor"),
		Action:   domain.AuditAction(c.QueryParam("action")),
		TargetID: c.QueryParam("target_id"),
		Limit:    queryInt(c, "limit", 100),
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "from must be RFC3339"})
		}
		filter.From = t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "to must be RFC3339"})
		}
		filter.To = t
	}

	entries, err := h.audit.Query(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// configHistory lists every configuration version with its metadata.
func (h *Handler) configHistory(c echo.Context) error {
	versions := h.engine.Configs().History()

	out := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		out = append(out, map[string]any{
			"version":    v.Version,
			"updated_by": v.UpdatedBy,
			"created_at": v.CreatedAt,
			"config":     v.Config,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"versions": out})
}

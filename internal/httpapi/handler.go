package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/alerting"
	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/merchant"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/risk"
)

// Handler wires the HTTP routes to the domain services. The transport layer
// validates request shape only; all business rules live below it.
type Handler struct {
	merchants *merchant.Service
	engine    *risk.Engine
	alerts    *alerting.Dispatcher
	audit     *audit.Trail

	log *logger.Logger
}

// NewHandler creates the route handler.
func NewHandler(
	merchants *merchant.Service,
	engine *risk.Engine,
	alerts *alerting.Dispatcher,
	trail *audit.Trail,
	log *logger.Logger,
) *Handler {
	return &Handler{
		merchants: merchants,
		engine:    engine,
		alerts:    alerts,
		audit:     trail,
		log:       log.Named("http"),
	}
}

// Register mounts all routes under /api/v1. Mutating admin operations sit
// behind the supplied auth middleware; read endpoints are open.
func (h *Handler) Register(e *echo.Echo, adminAuth echo.MiddlewareFunc) {
	api := e.Group("/api/v1")

	// Merchants
	api.POST("/merchants", h.onboardMerchant)
	api.GET("/merchants", h.listMerchants)
	api.GET("/merchants/:id", h.getMerchant)
	api.PUT("/merchants/:id", h.updateMerchant)
	api.DELETE("/merchants/:id", h.deleteMerchant, adminAuth)
	api.POST("/merchants/:id/approve", h.approveMerchant, adminAuth)
	api.POST("/merchants/:id/reject", h.rejectMerchant, adminAuth)

	// Risk assessment
	api.GET("/merchants/:id/risk", h.getMerchantRisk)
	api.GET("/merchants/:id/risk/history", h.getRiskHistory)
	api.GET("/merchants/:id/risk/recompute", h.recomputeRisk)
	api.POST("/merchants/:id/risk/override", h.overrideRisk, adminAuth)
	api.POST("/merchants/reassess", h.reassessAll, adminAuth)

	// Configuration
	api.GET("/config/weights", h.getWeights)
	api.PUT("/config/weights", h.updateWeights, adminAuth)
	api.GET("/config/thresholds", h.getThresholds)
	api.PUT("/config/thresholds", h.updateThresholds, adminAuth)
	api.GET("/config/lists", h.getLists)
	api.PUT("/config/lists", h.updateList, adminAuth)

	// Alerts
	api.GET("/alerts", h.listAlerts)
	api.POST("/alerts/:id/resolve", h.resolveAlert, adminAuth)

	// Audit
	api.GET("/audit/logs", h.queryAuditLog, adminAuth)
	api.GET("/audit/config-history", h.configHistory, adminAuth)

	// Dashboard
	api.GET("/dashboard/stats", h.dashboardStats)
}

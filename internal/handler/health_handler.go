// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greymatter/internal/config"
	"greymatter/internal/service"
	"greymatter/internal/utils"
)

// HealthHandler reports process and board status for probes
type HealthHandler struct {
	router    *service.RouterService
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(router *service.RouterService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		router:    router,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports the registered boards and the ZMQ endpoint. Running
// without boards is degraded, not unhealthy: the server keeps serving and
// waits for __rescan__.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	devices := h.router.List()

	boards := CheckResult{Status: "healthy", Message: "Boards registered"}
	if len(devices) == 0 {
		boards = CheckResult{Status: "degraded", Message: "No Pico boards connected"}
	}
	boards.Data = map[string]interface{}{
		"count":   len(devices),
		"devices": devices,
	}

	c.JSON(http.StatusOK, &HealthResponse{
		Status:    boards.Status,
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks: map[string]CheckResult{
			"boards": boards,
			"endpoint": {
				Status: "healthy",
				Data:   map[string]interface{}{"address": h.config.GetEndpoint()},
			},
		},
	})
}

// ReadinessCheck succeeds once at least one board is registered
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,boards=int}
// @Failure 503 {object} object{status=string,reason=string}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.router.Ready() {
		h.logger.Debug("Readiness probe failed: no boards registered")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "No Pico boards connected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"boards": len(h.router.List()),
	})
}

// LivenessCheck for liveness probes
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string}
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

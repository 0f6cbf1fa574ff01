// internal/handler/device_handler.go
package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greymatter/internal/protocol"
	"greymatter/internal/service"
	"greymatter/internal/utils"
)

// DeviceHandler exposes the router over HTTP
type DeviceHandler struct {
	router *service.RouterService
	logger *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(router *service.RouterService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		router: router,
		logger: utils.NewServiceLogger(logger, "device-handler"),
	}
}

// CommandRequest is the body of POST /commands
type CommandRequest struct {
	Cmd  string  `json:"cmd" binding:"required"`
	Pico *string `json:"pico"`
}

// CommandResult is the data of a successful command
type CommandResult struct {
	Cmd      string      `json:"cmd"`
	Pico     *string     `json:"pico,omitempty"`
	Response interface{} `json:"response"`
}

// RegisterRoutes registers device-related routes
func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.POST("/rescan", h.RescanDevices)
	}

	router.POST("/commands", h.ExecuteCommand)
	router.POST("/rpc", h.RawRequest)
}

// ListDevices lists the registered boards
// @Summary List boards
// @Description Registered boards in discovery order. No device I/O.
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]protocol.DeviceInfo}
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices := h.router.List()
	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// RescanDevices closes every link and runs discovery again
// @Summary Rescan serial ports
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{status=string,devices=[]protocol.DeviceInfo}}
// @Router /devices/rescan [post]
func (h *DeviceHandler) RescanDevices(c *gin.Context) {
	status, err := h.router.Rescan(c.Request.Context())
	if err != nil {
		h.logger.Error("Rescan failed", zap.Error(err))
		utils.CommandErrorResponse(c, err)
		return
	}

	h.logger.Info("Rescan completed", zap.String("status", status))
	utils.SuccessResponse(c, http.StatusOK, status, gin.H{
		"status":  status,
		"devices": h.router.List(),
	})
}

// ExecuteCommand forwards one command to a board
// @Summary Execute a command
// @Description Routes cmd to pico, or to the only registered board when pico is omitted.
// @Tags Commands
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse{data=CommandResult}
// @Failure 400 {object} utils.APIResponse "Invalid request or unknown meta command"
// @Failure 404 {object} utils.APIResponse "Unknown board"
// @Failure 409 {object} utils.APIResponse "Several boards and no target"
// @Failure 502 {object} utils.APIResponse "Communication error"
// @Failure 503 {object} utils.APIResponse "No boards connected"
// @Failure 504 {object} utils.APIResponse "Device timeout"
// @Router /commands [post]
func (h *DeviceHandler) ExecuteCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, err := h.router.Execute(c.Request.Context(), protocol.Envelope{Cmd: req.Cmd, Pico: req.Pico})
	if err != nil {
		utils.CommandErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Command executed", CommandResult{
		Cmd:      req.Cmd,
		Pico:     req.Pico,
		Response: data,
	})
}

// RawRequest accepts the ZMQ request object verbatim and answers with the
// ZMQ reply object, always with status 200.
// @Summary Raw request/reply
// @Tags Commands
// @Accept json
// @Produce json
// @Router /rpc [post]
func (h *DeviceHandler) RawRequest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	reply := h.router.Handle(c.Request.Context(), body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", reply)
}

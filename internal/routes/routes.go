// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greymatter/internal/config"
	"greymatter/internal/events"
	"greymatter/internal/handler"
	"greymatter/internal/middleware"
	"greymatter/internal/service"
	"greymatter/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config        *config.Config
	logger        *zap.Logger
	routerService *service.RouterService
	bus           *events.Bus
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	routerService *service.RouterService,
	bus *events.Bus,
) *Router {
	return &Router{
		config:        config,
		logger:        logger,
		routerService: routerService,
		bus:           bus,
	}
}

// SetupRouter creates and configures the Gin router. When an event bus is
// attached, the WebSocket event stream is started as well.
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	case r.config.IsDebugEnabled():
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger, "/health", "/ready", "/live"))

	router.Use(middleware.CORSMiddleware(&r.config.HTTP))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.routerService, r.config, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.routerService, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))
	deviceHandler.RegisterRoutes(router.Group("/api/v1"))

	if r.bus != nil {
		wsHandler := handler.NewWebSocketHandler(r.routerService, r.bus, r.logger)
		wsHandler.RegisterRoutes(router.Group("/ws"))
		go wsHandler.Run()
	}

	r.logger.Info("All routes configured successfully")
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"greymatter/internal/config"
	"greymatter/internal/discovery"
	"greymatter/internal/events"
	"greymatter/internal/protocol/remote"
	"greymatter/internal/registry"
	"greymatter/internal/routes"
	"greymatter/internal/service"
	"greymatter/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger

	registry      *registry.Registry
	scanner       *discovery.Scanner
	routerService *service.RouterService
	bus           *events.Bus

	endpoint *remote.Server
	server   *http.Server
	mqtt     *events.MQTTForwarder

	ctx      context.Context
	cancel   context.CancelFunc
	serveErr chan error
}

func main() {
	flags := config.NewFlagSet("greymatter-server")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	app, err := NewApplication(flags)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(flags *pflag.FlagSet) (*Application, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config:   cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		serveErr: make(chan error, 1),
	}

	app.initializeEvents()
	app.initializeRouter()

	if err := app.initializeMQTT(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize MQTT: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeEvents starts the event bus shared by discovery, the router,
// WebSocket clients and MQTT.
func (app *Application) initializeEvents() {
	app.bus = events.NewBus(app.logger)
	go app.bus.Start()
}

// initializeRouter wires the registry, scanner and router service
func (app *Application) initializeRouter() {
	app.registry = registry.NewRegistry(app.logger)

	app.scanner = discovery.NewScanner(discovery.Config{
		Patterns:       app.config.Serial.ScanPatterns,
		BaudRate:       app.config.Serial.BaudRate,
		Timeout:        app.config.Serial.CommandTimeout,
		StartupTimeout: app.config.Serial.StartupTimeout,
	}, app.logger)
	app.scanner.SetPublisher(app.bus)

	app.routerService = service.NewRouterService(app.registry, app.scanner, app.logger)
	app.routerService.SetPublisher(app.bus)

	app.endpoint = remote.NewServer(app.config.GetEndpoint(), app.routerService.Handle, app.logger)
}

// initializeMQTT connects the event forwarder when enabled
func (app *Application) initializeMQTT() error {
	if !app.config.MQTT.Enabled {
		return nil
	}

	forwarder, err := events.NewMQTTForwarder(events.MQTTConfig{
		Broker:      app.config.MQTT.Broker,
		ClientID:    app.config.MQTT.ClientID,
		TopicPrefix: app.config.MQTT.TopicPrefix,
		QoS:         byte(app.config.MQTT.QoS),
		Timeout:     app.config.MQTT.Timeout,
	}, app.logger)
	if err != nil {
		return err
	}

	app.mqtt = forwarder
	go forwarder.Run(app.bus.Subscribe(events.AllEvents))

	app.logger.Info("MQTT event forwarding enabled",
		zap.String("broker", app.config.MQTT.Broker),
		zap.String("topic_prefix", app.config.MQTT.TopicPrefix),
	)
	return nil
}

// initializeServer sets up the optional HTTP gateway
func (app *Application) initializeServer() {
	if !app.config.HTTP.Enabled {
		return
	}

	routerManager := routes.NewRouter(app.config, app.logger, app.routerService, app.bus)

	app.server = &http.Server{
		Addr:         app.config.GetHTTPAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		IdleTimeout:  app.config.HTTP.IdleTimeout,
	}

	app.logger.Info("HTTP gateway initialized", zap.String("address", app.server.Addr))
}

// Start discovers the boards, serves requests and blocks until a shutdown
// signal arrives or the endpoint fails.
func (app *Application) Start() error {
	found := app.routerService.Discover(app.ctx)
	if found == 0 {
		app.logger.Warn("No Pico boards found. Server will still start (use __rescan__ after connecting boards).")
	}
	app.logger.Info(fmt.Sprintf("Managing %d Pico board(s)", found))

	go func() {
		app.serveErr <- app.endpoint.Serve(app.ctx)
	}()

	select {
	case <-app.endpoint.Ready():
		app.logger.Info("Listening", zap.String("endpoint", app.config.GetEndpoint()))
	case err := <-app.serveErr:
		app.routerService.Close()
		return fmt.Errorf("failed to start endpoint: %w", err)
	}

	if app.server != nil {
		go func() {
			app.logger.Info("Starting HTTP gateway", zap.String("address", app.server.Addr))
			if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.Fatal("Failed to start HTTP gateway", zap.Error(err))
			}
		}()
	}

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	reason := "shutdown signal received"
	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-app.serveErr:
		app.logger.Error("Endpoint stopped unexpectedly", zap.Error(err))
		reason = "endpoint failure"
	}

	app.shutdown(reason)
}

// shutdown closes every board link before the endpoint is released
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop(reason)

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownTimeout)
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP gateway shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP gateway stopped")
		}
		cancel()
	}

	app.routerService.Close()
	app.logger.Info("Board connections closed")

	app.cancel()

	app.bus.Stop()
	if app.mqtt != nil {
		app.mqtt.Close()
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

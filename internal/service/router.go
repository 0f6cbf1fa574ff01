// internal/service/router.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"greymatter/internal/discovery"
	"greymatter/internal/events"
	"greymatter/internal/model"
	"greymatter/internal/protocol"
	"greymatter/internal/registry"
	"greymatter/internal/utils"
	"greymatter/pkg/transport"
)

// RouterService executes client requests against the registered boards.
// Requests are handled strictly one at a time, whichever surface they
// arrive on.
type RouterService struct {
	registry   *registry.Registry
	scanner    *discovery.Scanner
	publisher  events.Publisher
	logger     *utils.ServiceLogger
	baseLogger *zap.Logger
	mu         sync.Mutex
}

// NewRouterService creates a new router service instance
func NewRouterService(reg *registry.Registry, scanner *discovery.Scanner, logger *zap.Logger) *RouterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterService{
		registry:   reg,
		scanner:    scanner,
		logger:     utils.NewServiceLogger(logger, "router-service"),
		baseLogger: logger,
	}
}

// SetPublisher attaches an event sink for command events.
func (rs *RouterService) SetPublisher(p events.Publisher) {
	rs.publisher = p
}

// Discover runs an initial scan and fills the registry. It returns the
// number of boards found.
func (rs *RouterService) Discover(ctx context.Context) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	devices := rs.scanner.Scan(ctx)
	rs.registry.Replace(devices)
	return len(devices)
}

// Handle turns one raw request into one raw reply. It never fails: every
// error, including a panic while executing, becomes a failure reply.
func (rs *RouterService) Handle(ctx context.Context, raw []byte) []byte {
	env, err := protocol.ParseEnvelope(raw)
	if err != nil {
		rs.logger.Warn("Rejected request", zap.Error(err))
		return protocol.Failure(err.Error()).Marshal()
	}

	data, err := rs.Execute(ctx, env)
	if err != nil {
		return protocol.Failure(err.Error()).Marshal()
	}
	return protocol.Success(data).Marshal()
}

// Execute runs one parsed request. Meta-commands are answered locally;
// anything else is forwarded to the resolved board and its response body
// returned.
func (rs *RouterService) Execute(ctx context.Context, env protocol.Envelope) (data interface{}, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			rs.logger.Error("Panic while handling request",
				zap.Any("panic", r),
				zap.String("cmd", env.Cmd),
				zap.Stack("stacktrace"),
			)
			data, err = nil, fmt.Errorf("Internal error: %v", r)
		}
	}()

	if protocol.IsMeta(env.Cmd) {
		return rs.handleMeta(ctx, env.Cmd)
	}

	device, err := rs.registry.Resolve(env.Pico)
	if err != nil {
		rs.logger.Warn("Failed to route command",
			zap.String("cmd", env.Cmd),
			zap.Error(err),
		)
		return nil, err
	}

	return rs.forward(device, env.Cmd)
}

// List returns the registered boards in discovery order.
func (rs *RouterService) List() []protocol.DeviceInfo {
	return rs.registry.List()
}

// Rescan closes every link and runs discovery again. The returned status
// is the same text the rescan meta-command replies with.
func (rs *RouterService) Rescan(ctx context.Context) (string, error) {
	data, err := rs.Execute(ctx, protocol.Envelope{Cmd: protocol.MetaRescan})
	if err != nil {
		return "", err
	}
	return data.(string), nil
}

// Ready reports whether at least one board is registered.
func (rs *RouterService) Ready() bool {
	return rs.registry.Len() > 0
}

// Close closes every registered link best-effort. It waits for an
// in-flight request to finish.
func (rs *RouterService) Close() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.registry.CloseAll()
}

func (rs *RouterService) handleMeta(ctx context.Context, cmd string) (interface{}, error) {
	switch cmd {
	case protocol.MetaList:
		return rs.registry.List(), nil
	case protocol.MetaRescan:
		rs.logger.Info("Rescanning serial ports")
		found := rs.scanner.Rescan(ctx, rs.registry)
		return fmt.Sprintf("Found %d pico(s)", found), nil
	default:
		return nil, transport.NewRoutingError(transport.RoutingUnknownMeta,
			"Unknown meta command: %s", cmd)
	}
}

func (rs *RouterService) forward(device *model.Device, cmd string) (interface{}, error) {
	bl := utils.NewBoardLogger(rs.baseLogger, device.Name, device.Port)

	start := time.Now()
	body, err := device.Link.SendCommand(cmd)
	bl.LogTransaction(cmd, time.Since(start), err)

	eventData := map[string]interface{}{
		"device": device.Name,
		"cmd":    cmd,
	}
	if err != nil {
		eventData["error"] = err.Error()
		rs.publish(model.EventCommandFailed, eventData)
		return nil, err
	}

	eventData["response"] = body
	rs.publish(model.EventCommandCompleted, eventData)
	return body, nil
}

func (rs *RouterService) publish(eventType model.EventType, data map[string]interface{}) {
	if rs.publisher == nil {
		return
	}
	rs.publisher.Publish(model.NewEvent(eventType, "router", data))
}

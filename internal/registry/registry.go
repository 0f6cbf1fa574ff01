// internal/registry/registry.go
package registry

import (
	"sync"

	"go.uber.org/zap"

	"greymatter/internal/model"
	"greymatter/internal/protocol"
	"greymatter/pkg/transport"
)

// Registry is the ordered mapping from logical name to device. Entries
// keep discovery order.
type Registry struct {
	devices []*model.Device
	byName  map[string]*model.Device
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byName: make(map[string]*model.Device),
		logger: logger.With(zap.String("component", "registry")),
	}
}

// Replace swaps the whole mapping for devices, in the given order.
func (r *Registry) Replace(devices []*model.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make([]*model.Device, 0, len(devices))
	r.byName = make(map[string]*model.Device, len(devices))
	for _, d := range devices {
		r.devices = append(r.devices, d)
		r.byName[d.Name] = d
	}

	r.logger.Info("Registry updated", zap.Strings("devices", r.namesLocked()))
}

// Get returns the device registered under name.
func (r *Registry) Get(name string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of registered devices
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Names returns the registered names in discovery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.devices))
	for i, d := range r.devices {
		names[i] = d.Name
	}
	return names
}

// List returns name, port and identification of every device. It does no
// device I/O.
func (r *Registry) List() []protocol.DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]protocol.DeviceInfo, len(r.devices))
	for i, d := range r.devices {
		infos[i] = d.Info()
	}
	return infos
}

// Resolve picks the device a request is routed to. Without a target it
// succeeds only when exactly one device is registered.
func (r *Registry) Resolve(target *string) (*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target == nil {
		switch len(r.devices) {
		case 0:
			return nil, transport.NewRoutingError(transport.RoutingNoDevice,
				"No Pico boards connected")
		case 1:
			return r.devices[0], nil
		default:
			return nil, transport.NewRoutingError(transport.RoutingAmbiguousTarget,
				"Multiple picos connected, specify one of: %s", protocol.FormatNames(r.namesLocked()))
		}
	}

	d, ok := r.byName[*target]
	if !ok {
		return nil, transport.NewRoutingError(transport.RoutingUnknownDevice,
			"Unknown pico '%s'. Available: %s", *target, protocol.FormatNames(r.namesLocked()))
	}
	return d, nil
}

// CloseAll closes every link best-effort and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.Link == nil {
			continue
		}
		if err := d.Link.Close(); err != nil {
			r.logger.Warn("Failed to close device link",
				zap.String("device", d.Name),
				zap.String("port", d.Port),
				zap.Error(err),
			)
		}
	}

	r.devices = nil
	r.byName = make(map[string]*model.Device)
}

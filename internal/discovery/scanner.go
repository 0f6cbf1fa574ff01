// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"greymatter/internal/events"
	"greymatter/internal/model"
	"greymatter/internal/protocol/serial"
	"greymatter/internal/registry"
	"greymatter/pkg/transport"
)

// IdentifyCommand is the query every candidate must answer.
const IdentifyCommand = "*IDN?"

// Config holds the discovery parameters. It is passed explicitly; there is
// no package-level pattern list to mutate.
type Config struct {
	Patterns       []string      `json:"patterns"`
	BaudRate       int           `json:"baud_rate"`
	Timeout        time.Duration `json:"timeout"`
	StartupTimeout time.Duration `json:"startup_timeout"`
}

// DefaultPatterns returns the serial device globs for the running platform.
func DefaultPatterns() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{"/dev/ttyACM*", "/dev/ttyUSB*"}
	case "darwin":
		return []string{"/dev/tty.usbmodem*", "/dev/tty.usbserial*"}
	default:
		return []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/tty.usbmodem*"}
	}
}

// Opener opens a link to address and leaves it ready for commands.
type Opener func(ctx context.Context, address string, baudRate int, timeout time.Duration) (transport.Transport, error)

// Scanner probes candidate serial addresses for boards.
type Scanner struct {
	config    Config
	open      Opener
	glob      func(pattern string) ([]string, error)
	publisher events.Publisher
	logger    *zap.Logger
}

// NewScanner creates a new serial scanner
func NewScanner(config Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.Patterns) == 0 {
		config.Patterns = DefaultPatterns()
	}
	if config.BaudRate == 0 {
		config.BaudRate = serial.DefaultBaudRate
	}
	if config.Timeout <= 0 {
		config.Timeout = serial.DefaultCommandTimeout
	}

	s := &Scanner{
		config: config,
		glob:   filepath.Glob,
		logger: logger.With(zap.String("scanner", "serial")),
	}
	s.open = func(ctx context.Context, address string, baudRate int, timeout time.Duration) (transport.Transport, error) {
		conn, err := serial.NewConnection(&serial.Config{
			Port:           address,
			BaudRate:       baudRate,
			Timeout:        timeout,
			StartupTimeout: s.config.StartupTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := conn.Open(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	}
	return s
}

// SetOpener replaces the function used to open candidates.
func (s *Scanner) SetOpener(open Opener) {
	s.open = open
}

// SetGlob replaces the function used to expand patterns.
func (s *Scanner) SetGlob(glob func(pattern string) ([]string, error)) {
	s.glob = glob
}

// SetPublisher attaches an event sink.
func (s *Scanner) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// GetConfig returns the scan parameters
func (s *Scanner) GetConfig() Config {
	return s.config
}

// Candidates expands every pattern in order, each pattern's matches sorted
// lexically. An address matched by several patterns is listed once.
func (s *Scanner) Candidates() []string {
	seen := make(map[string]bool)
	var ports []string

	for _, pattern := range s.config.Patterns {
		matches, err := s.glob(pattern)
		if err != nil {
			s.logger.Warn("Invalid scan pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			ports = append(ports, m)
		}
	}
	return ports
}

// Scan tries every candidate in order and returns the boards that answered
// the identification query, named pico_0, pico_1, ... in that order. A
// failing candidate is skipped; the scan itself never fails.
func (s *Scanner) Scan(ctx context.Context) []*model.Device {
	candidates := s.Candidates()
	details := s.portDetails()

	s.logger.Info("Starting serial port scan",
		zap.Strings("patterns", s.config.Patterns),
		zap.Strings("candidates", candidates),
	)

	var devices []*model.Device
	for _, port := range candidates {
		select {
		case <-ctx.Done():
			s.logger.Warn("Serial scan cancelled", zap.Error(ctx.Err()))
			return devices
		default:
		}

		fields := []zap.Field{zap.String("port", port)}
		if d, ok := details[port]; ok && d.IsUSB {
			fields = append(fields,
				zap.String("vid", d.VID),
				zap.String("pid", d.PID),
				zap.String("serial_number", d.SerialNumber),
			)
		}
		s.logger.Info("Trying port", fields...)

		idn, link, err := s.probe(ctx, port)
		if err != nil {
			s.logger.Info("Skipping port", append(fields, zap.Error(err))...)
			s.publish(model.EventDeviceSkipped, map[string]interface{}{
				"port":  port,
				"error": err.Error(),
			})
			continue
		}

		device := &model.Device{
			Name:         model.LogicalName(len(devices)),
			Port:         port,
			IDN:          idn,
			DiscoveredAt: time.Now(),
			Link:         link,
		}
		devices = append(devices, device)

		s.logger.Info("Board registered",
			zap.String("device", device.Name),
			zap.String("port", port),
			zap.String("idn", idn),
		)
		s.publish(model.EventDeviceRegistered, map[string]interface{}{
			"name": device.Name,
			"port": port,
			"idn":  idn,
		})
	}

	s.logger.Info("Serial scan completed", zap.Int("devices_found", len(devices)))
	return devices
}

// Rescan closes every registered link best-effort, clears the registry and
// fills it from a fresh scan. It returns the number of boards found.
func (s *Scanner) Rescan(ctx context.Context, reg *registry.Registry) int {
	reg.CloseAll()
	devices := s.Scan(ctx)
	reg.Replace(devices)

	s.publish(model.EventRegistryRescanned, map[string]interface{}{
		"devices_found": len(devices),
	})
	return len(devices)
}

// probe opens port and asks it to identify itself. The link is closed
// again on failure.
func (s *Scanner) probe(ctx context.Context, port string) (string, transport.Transport, error) {
	link, err := s.open(ctx, port, s.config.BaudRate, s.config.Timeout)
	if err != nil {
		return "", nil, err
	}

	idn, err := link.SendCommand(IdentifyCommand)
	if err == nil && idn == "" {
		err = fmt.Errorf("no identification response")
	}
	if err != nil {
		if cerr := link.Close(); cerr != nil {
			s.logger.Debug("Failed to close rejected port", zap.String("port", port), zap.Error(cerr))
		}
		return "", nil, err
	}
	return idn, link, nil
}

// portDetails maps port names to their USB identity, when the platform
// can enumerate it.
func (s *Scanner) portDetails() map[string]*enumerator.PortDetails {
	details := make(map[string]*enumerator.PortDetails)
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		s.logger.Debug("Port enumeration unavailable", zap.Error(err))
		return details
	}
	for _, d := range list {
		details[d.Name] = d
	}
	return details
}

func (s *Scanner) publish(eventType model.EventType, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.NewEvent(eventType, "discovery", data))
}

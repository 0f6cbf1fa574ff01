// internal/protocol/serial/connection.go
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"greymatter/pkg/transport"
)

// Default timings for the line protocol.
const (
	DefaultBaudRate       = 115200
	DefaultCommandTimeout = 2 * time.Second
	DefaultStartupTimeout = 5 * time.Second
)

// Port is the part of a serial port the line protocol needs.
// go.bug.st/serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// OpenFunc opens the physical port described by config.
type OpenFunc func(config *Config) (Port, error)

// Config represents serial port configuration
type Config struct {
	Port           string        `json:"port" mapstructure:"port"`
	BaudRate       int           `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits       int           `json:"data_bits" mapstructure:"data_bits"`
	StopBits       int           `json:"stop_bits" mapstructure:"stop_bits"`
	Parity         string        `json:"parity" mapstructure:"parity"`
	Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`
	StartupTimeout time.Duration `json:"startup_timeout" mapstructure:"startup_timeout"`
}

// Connection drives one physical serial link running the prompt-based
// line protocol. It implements transport.Transport.
type Connection struct {
	config *Config
	port   Port
	open   OpenFunc
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
}

var _ transport.Transport = (*Connection)(nil)

// NewConnection creates a new serial connection. Zero values in config
// are replaced by the protocol defaults.
func NewConnection(config *Config, logger *zap.Logger) (*Connection, error) {
	if config == nil || config.Port == "" {
		return nil, fmt.Errorf("port is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := *config
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCommandTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}

	return &Connection{
		config: &cfg,
		open:   openSerialPort,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", cfg.Port),
		),
	}, nil
}

// Dial opens address at baudRate and waits for the firmware prompt.
func Dial(ctx context.Context, address string, baudRate int, timeout time.Duration, logger *zap.Logger) (*Connection, error) {
	conn, err := NewConnection(&Config{
		Port:     address,
		BaudRate: baudRate,
		Timeout:  timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// SetOpenFunc replaces the function used to open the physical port.
func (c *Connection) SetOpenFunc(open OpenFunc) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.open = open
}

// Open opens the serial connection and drains the startup banner.
func (c *Connection) Open(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isOpen {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	port, err := c.open(c.config)
	if err != nil {
		c.logger.Debug("Failed to open serial port", zap.Error(err))
		return transport.NewCommunicationError("open "+c.config.Port, err)
	}

	if err := port.SetReadTimeout(c.config.Timeout); err != nil {
		port.Close()
		return transport.NewCommunicationError("set read timeout", err)
	}

	c.port = port
	c.isOpen = true

	drained, err := c.drainUntilPrompt(c.config.StartupTimeout)
	if err != nil {
		c.port.Close()
		c.port = nil
		c.isOpen = false
		return err
	}

	c.logger.Info("Serial port opened successfully",
		zap.Int("baud_rate", c.config.BaudRate),
		zap.Int("banner_bytes", drained),
	)
	return nil
}

// Close closes the serial connection
func (c *Connection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isOpen || c.port == nil {
		return nil
	}

	err := c.port.Close()
	c.port = nil
	c.isOpen = false
	if err != nil {
		c.logger.Error("Failed to close serial port", zap.Error(err))
		return transport.NewCommunicationError("close", err)
	}

	c.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the connection is open
func (c *Connection) IsOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.isOpen
}

// GetConfig returns the connection configuration
func (c *Connection) GetConfig() *Config {
	return c.config
}

// SendCommand runs one transaction: discard stale input, write the command
// and a newline, read until the prompt, and return the parsed body. The
// link is held for the whole transaction.
func (c *Connection) SendCommand(cmd string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isOpen || c.port == nil {
		return "", transport.NewCommunicationError("send", transport.ErrNotConnected)
	}

	startTime := time.Now()

	if err := c.port.ResetInputBuffer(); err != nil {
		return "", transport.NewCommunicationError("reset input buffer", err)
	}

	data := []byte(cmd + "\n")
	n, err := c.port.Write(data)
	if err != nil {
		return "", transport.NewCommunicationError("write", err)
	}
	if n != len(data) {
		return "", transport.NewCommunicationError("write",
			fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data)))
	}

	buf, complete, err := c.readUntilPrompt()
	if err != nil {
		return "", err
	}
	if !complete {
		c.logger.Warn("Timeout waiting for prompt",
			zap.String("command", cmd),
			zap.Duration("timeout", c.config.Timeout),
			zap.Int("bytes_read", len(buf)),
		)
		return "", transport.ErrTimeout
	}

	body := ParseResponse(buf)
	c.logger.Debug("Serial transaction completed",
		zap.String("command", cmd),
		zap.Int("bytes_read", len(buf)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return body, nil
}

// readUntilPrompt reads one byte at a time until the buffer ends with the
// prompt. complete is false when a read timed out with no byte.
func (c *Connection) readUntilPrompt() (buf []byte, complete bool, err error) {
	one := make([]byte, 1)
	for {
		n, err := c.port.Read(one)
		if err != nil && err != io.EOF {
			return buf, false, transport.NewCommunicationError("read", err)
		}
		if n == 0 {
			return buf, false, nil
		}
		buf = append(buf, one[0])
		if hasPrompt(buf) {
			return buf, true, nil
		}
	}
}

// drainUntilPrompt discards the startup banner. Running out of time is
// not an error; the next transaction waits for its own prompt.
func (c *Connection) drainUntilPrompt(timeout time.Duration) (int, error) {
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, transport.NewCommunicationError("set read timeout", err)
	}

	buf, complete, readErr := c.readUntilPrompt()

	if err := c.port.SetReadTimeout(c.config.Timeout); err != nil {
		return len(buf), transport.NewCommunicationError("set read timeout", err)
	}
	if readErr != nil {
		return len(buf), readErr
	}
	if !complete {
		c.logger.Debug("No prompt during startup drain",
			zap.Duration("timeout", timeout),
			zap.Int("bytes_read", len(buf)),
		)
	}
	return len(buf), nil
}

// openSerialPort opens a physical port with go.bug.st/serial.
func openSerialPort(config *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
	}

	switch config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	// Set parity
	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// pkg/greymatter/controller.go
package greymatter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greymatter/internal/protocol"
	"greymatter/internal/protocol/remote"
	"greymatter/internal/protocol/serial"
	"greymatter/pkg/transport"
)

// MaxBoards is the number of daughter boards one controller addresses.
const MaxBoards = 8

// Fixed command strings understood by every firmware revision.
const (
	CmdIdentify    = "*IDN?"
	CmdReset       = "*RST"
	CmdFaultStatus = "FAULT?"
	CmdUpdateAll   = "UPDATE:ALL"
	CmdPulseLDAC   = "LDAC"
)

// DeviceInfo describes one board managed by a routing server.
type DeviceInfo = protocol.DeviceInfo

// ErrInvalidAddress reports a board, DAC or channel index out of range.
var ErrInvalidAddress = errors.New("invalid address")

// Options configures OpenSerial and OpenRemote. Zero values select the
// defaults.
type Options struct {
	BaudRate  int
	Timeout   time.Duration
	NumBoards int
	ZMQPort   int
	Logger    *zap.Logger
}

// Controller drives a greymatter DAC controller over any transport.
type Controller struct {
	link   transport.Transport
	boards []*Board
}

// New creates a controller over link addressing numBoards boards
// (MaxBoards when numBoards is out of range).
func New(link transport.Transport, numBoards int) *Controller {
	if numBoards <= 0 || numBoards > MaxBoards {
		numBoards = MaxBoards
	}

	c := &Controller{link: link}
	c.boards = make([]*Board, numBoards)
	for i := range c.boards {
		c.boards[i] = newBoard(c, i)
	}
	return c
}

// OpenSerial connects directly to the firmware on port.
func OpenSerial(ctx context.Context, port string, opts Options) (*Controller, error) {
	conn, err := serial.Dial(ctx, port, opts.BaudRate, opts.Timeout, opts.Logger)
	if err != nil {
		return nil, err
	}
	return New(conn, opts.NumBoards), nil
}

// OpenRemote connects through a routing server at address. pico selects
// the board; nil routes to the server's only board. The timeout is never
// below remote.DefaultTimeout.
func OpenRemote(ctx context.Context, address string, pico *string, opts Options) (*Controller, error) {
	timeout := opts.Timeout
	if timeout < remote.DefaultTimeout {
		timeout = remote.DefaultTimeout
	}

	client, err := remote.Dial(ctx, &remote.Config{
		Address: address,
		Port:    opts.ZMQPort,
		Pico:    pico,
		Timeout: timeout,
	}, opts.Logger)
	if err != nil {
		return nil, err
	}
	return New(client, opts.NumBoards), nil
}

// ListPicos asks the routing server at address which boards it manages.
func ListPicos(ctx context.Context, address string, port int, timeout time.Duration) ([]DeviceInfo, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := remote.Dial(ctx, &remote.Config{
		Address: address,
		Port:    port,
		Timeout: timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.ListDevices()
}

// Close closes the underlying transport.
func (c *Controller) Close() error {
	return c.link.Close()
}

// Command sends cmd and returns the response body. A body starting with
// ERROR: is returned as a *transport.ProtocolError.
func (c *Controller) Command(cmd string) (string, error) {
	resp, err := c.link.SendCommand(cmd)
	if err != nil {
		return "", err
	}
	if err := transport.CheckResponse(resp); err != nil {
		return "", err
	}
	return resp, nil
}

// Query is Command for commands that return a value.
func (c *Controller) Query(cmd string) (string, error) {
	return c.Command(cmd)
}

// Identify returns the identification string.
func (c *Controller) Identify() (string, error) {
	return c.Query(CmdIdentify)
}

// Reset resets every DAC.
func (c *Controller) Reset() error {
	_, err := c.Command(CmdReset)
	return err
}

// FaultStatus returns the global fault register.
func (c *Controller) FaultStatus() (string, error) {
	return c.Query(CmdFaultStatus)
}

// UpdateAll updates every DAC output.
func (c *Controller) UpdateAll() error {
	_, err := c.Command(CmdUpdateAll)
	return err
}

// PulseLDAC pulses the load-DAC line.
func (c *Controller) PulseLDAC() error {
	_, err := c.Command(CmdPulseLDAC)
	return err
}

// NumBoards returns how many boards the controller addresses.
func (c *Controller) NumBoards() int {
	return len(c.boards)
}

// Board returns board id.
func (c *Controller) Board(id int) (*Board, error) {
	if id < 0 || id >= len(c.boards) {
		return nil, fmt.Errorf("%w: board must be 0-%d, got %d", ErrInvalidAddress, len(c.boards)-1, id)
	}
	return c.boards[id], nil
}

// Channels returns every channel of every board, ordered by board, DAC
// and channel.
func (c *Controller) Channels() []Channel {
	var channels []Channel
	for _, b := range c.boards {
		for _, d := range b.dacs {
			channels = append(channels, d.channelList()...)
		}
	}
	return channels
}

// Calibration returns the calibration interface.
func (c *Controller) Calibration() *Calibration {
	return &Calibration{c: c}
}

// internal/protocol/remote/client.go
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"greymatter/internal/protocol"
	"greymatter/pkg/transport"
)

// DefaultTimeout bounds both the send and the receive half of an exchange.
const DefaultTimeout = 10 * time.Second

// Config describes how to reach a routing server.
type Config struct {
	Address string        `json:"address"`
	Port    int           `json:"port"`
	Pico    *string       `json:"pico,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// Endpoint returns the ZeroMQ endpoint for the configuration.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("tcp://%s:%d", c.Address, c.Port)
}

// Client is a REQ-socket proxy to a routing server. It implements
// transport.Transport with the same semantics as a local serial link.
type Client struct {
	config *Config
	logger *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	socket zmq4.Socket
	closed bool
}

var _ transport.Transport = (*Client)(nil)

// Dial connects a client to the server described by config.
func Dial(ctx context.Context, config *Config, logger *zap.Logger) (*Client, error) {
	if config == nil || config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := *config
	if cfg.Port == 0 {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	sockCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: &cfg,
		logger: logger.With(
			zap.String("protocol", "zmq"),
			zap.String("endpoint", cfg.Endpoint()),
		),
		ctx:    sockCtx,
		cancel: cancel,
	}

	if err := c.connect(ctx); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// connect opens a fresh REQ socket. Callers hold mu or own c exclusively.
func (c *Client) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	socket := zmq4.NewReq(c.ctx, zmq4.WithTimeout(c.config.Timeout))
	if err := socket.Dial(c.config.Endpoint()); err != nil {
		socket.Close()
		return transport.NewCommunicationError("dial "+c.config.Endpoint(), err)
	}

	c.socket = socket
	c.logger.Debug("Connected to routing server")
	return nil
}

// SendCommand sends cmd to the configured board (or the server's only
// board when no target is set) and returns the reply body.
func (c *Client) SendCommand(cmd string) (string, error) {
	raw, err := c.Exchange(protocol.Envelope{Cmd: cmd, Pico: c.config.Pico})
	if err != nil {
		return "", err
	}

	var body string
	if err := json.Unmarshal(raw, &body); err != nil {
		// Meta-commands answer with structured data.
		return string(raw), nil
	}
	return body, nil
}

// ListDevices asks the server for its registered boards.
func (c *Client) ListDevices() ([]protocol.DeviceInfo, error) {
	raw, err := c.Exchange(protocol.Envelope{Cmd: protocol.MetaList})
	if err != nil {
		return nil, err
	}

	var devices []protocol.DeviceInfo
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, transport.NewCommunicationError("decode device list", err)
	}
	return devices, nil
}

// Rescan asks the server to rediscover its boards and returns its status text.
func (c *Client) Rescan() (string, error) {
	raw, err := c.Exchange(protocol.Envelope{Cmd: protocol.MetaRescan})
	if err != nil {
		return "", err
	}

	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return string(raw), nil
	}
	return status, nil
}

// Exchange performs one strict request/reply round trip and returns the
// raw data of a success reply.
func (c *Client) Exchange(env protocol.Envelope) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, transport.NewCommunicationError("send", transport.ErrNotConnected)
	}
	if c.socket == nil {
		if err := c.connect(context.Background()); err != nil {
			return nil, err
		}
	}

	request, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	payload, err := c.roundTrip(request)
	if err != nil {
		return nil, err
	}

	var reply struct {
		OK    bool            `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, transport.NewCommunicationError("decode reply", err)
	}

	if !reply.OK {
		msg := reply.Error
		if msg == "" {
			msg = "Unknown server error"
		}
		return nil, &transport.ProtocolError{Response: msg}
	}
	if len(reply.Data) == 0 {
		return json.RawMessage(`""`), nil
	}
	return reply.Data, nil
}

type recvResult struct {
	msg zmq4.Msg
	err error
}

// roundTrip sends request and waits for one reply, each half bounded by
// the configured timeout. A REQ socket cannot be reused after a lost
// reply, so on timeout the socket is dropped and redialled lazily.
func (c *Client) roundTrip(request []byte) ([]byte, error) {
	socket := c.socket
	sent := make(chan error, 1)
	received := make(chan recvResult, 1)

	go func() {
		if err := socket.Send(zmq4.NewMsg(request)); err != nil {
			sent <- err
			return
		}
		sent <- nil
		msg, err := socket.Recv()
		received <- recvResult{msg: msg, err: err}
	}()

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case err := <-sent:
		if err != nil {
			c.reset()
			return nil, transport.NewCommunicationError("send", err)
		}
	case <-timer.C:
		c.reset()
		return nil, fmt.Errorf("%w (server send)", transport.ErrTimeout)
	}

	timer.Reset(c.config.Timeout)
	select {
	case res := <-received:
		if res.err != nil {
			c.reset()
			return nil, transport.NewCommunicationError("receive", res.err)
		}
		if len(res.msg.Frames) == 0 {
			return nil, transport.NewCommunicationError("receive", fmt.Errorf("empty reply"))
		}
		return res.msg.Frames[0], nil
	case <-timer.C:
		c.logger.Warn("Server timeout", zap.Duration("timeout", c.config.Timeout))
		c.reset()
		return nil, fmt.Errorf("%w (server)", transport.ErrTimeout)
	}
}

// reset drops the current socket; the next exchange redials.
func (c *Client) reset() {
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
}

// Close releases the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.socket != nil {
		err = c.socket.Close()
		c.socket = nil
	}
	c.cancel()
	return err
}

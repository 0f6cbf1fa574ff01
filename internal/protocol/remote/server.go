// internal/protocol/remote/server.go
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"
)

// Handler turns one raw request payload into one raw reply payload.
// It must not fail: every error is encoded in the reply.
type Handler func(ctx context.Context, request []byte) []byte

// Server is a REP endpoint. It receives a request, hands it to the handler
// and sends the reply before receiving the next one.
type Server struct {
	endpoint string
	handler  Handler
	logger   *zap.Logger

	mu     sync.Mutex
	socket zmq4.Socket
	ready  chan struct{}
}

// NewServer creates a server bound to endpoint once Serve is called.
func NewServer(endpoint string, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		endpoint: endpoint,
		handler:  handler,
		logger:   logger.With(zap.String("endpoint", endpoint)),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the endpoint is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Serve has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.Addr()
}

// Serve binds the endpoint and runs the request/reply loop until ctx is
// cancelled. The socket is released before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	socket := zmq4.NewRep(ctx)
	if err := socket.Listen(s.endpoint); err != nil {
		socket.Close()
		return fmt.Errorf("failed to bind %s: %w", s.endpoint, err)
	}

	s.mu.Lock()
	s.socket = socket
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("Listening for requests")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			socket.Close()
		case <-stop:
		}
	}()
	defer socket.Close()

	for {
		msg, err := socket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Request loop stopped")
				return nil
			}
			return fmt.Errorf("failed to receive request: %w", err)
		}

		var request []byte
		if len(msg.Frames) > 0 {
			request = msg.Frames[0]
		}

		reply := s.handler(ctx, request)
		if err := socket.Send(zmq4.NewMsg(reply)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The requester may have given up and gone away.
			s.logger.Warn("Failed to send reply", zap.Error(err))
		}
	}
}

// pkg/transport/errors.go
package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorPrefix marks a device-level failure in a response body.
const ErrorPrefix = "ERROR:"

// Sentinel errors for the transports.
var (
	// ErrTimeout indicates the prompt (or the server reply) did not arrive in time.
	ErrTimeout = errors.New("Timeout waiting for response")

	// ErrNotConnected indicates a transaction on a closed link.
	ErrNotConnected = errors.New("not connected")
)

// CommunicationError is an I/O fault below the protocol layer.
type CommunicationError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *CommunicationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Communication error: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("Communication error: %s", e.Op)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CommunicationError) Unwrap() error {
	return e.Cause
}

// NewCommunicationError creates a new communication error.
func NewCommunicationError(op string, cause error) error {
	return &CommunicationError{Op: op, Cause: cause}
}

// ProtocolError carries a response body the firmware prefixed with ERROR:,
// or the error text of a failure reply from a routing server.
type ProtocolError struct {
	Response string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return e.Response
}

// CheckResponse returns a ProtocolError when body reports a device error.
func CheckResponse(body string) error {
	if strings.HasPrefix(body, ErrorPrefix) {
		return &ProtocolError{Response: body}
	}
	return nil
}

// RoutingErrorKind categorizes routing failures on the server.
type RoutingErrorKind int

const (
	// RoutingInvalidRequest indicates a malformed request envelope.
	RoutingInvalidRequest RoutingErrorKind = iota
	// RoutingNoDevice indicates the registry is empty.
	RoutingNoDevice
	// RoutingAmbiguousTarget indicates several devices and no target.
	RoutingAmbiguousTarget
	// RoutingUnknownDevice indicates the named target is not registered.
	RoutingUnknownDevice
	// RoutingUnknownMeta indicates an unrecognized meta-command.
	RoutingUnknownMeta
)

// String returns a short name for the kind.
func (k RoutingErrorKind) String() string {
	switch k {
	case RoutingInvalidRequest:
		return "invalid_request"
	case RoutingNoDevice:
		return "no_device"
	case RoutingAmbiguousTarget:
		return "ambiguous_target"
	case RoutingUnknownDevice:
		return "unknown_device"
	case RoutingUnknownMeta:
		return "unknown_meta"
	default:
		return "unknown"
	}
}

// RoutingError is a request that could not be resolved to a device.
type RoutingError struct {
	Kind    RoutingErrorKind
	Message string
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return e.Message
}

// NewRoutingError creates a new routing error.
func NewRoutingError(kind RoutingErrorKind, format string, args ...interface{}) error {
	return &RoutingError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"greymatter/internal/protocol"
	"greymatter/pkg/transport"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: c.GetString(RequestIDKey),
	})
}

// ErrorResponse sends an error response with a code derived from the
// status.
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	writeError(c, statusCode, errorCodeForStatus(statusCode), message, err)
}

// CommandErrorResponse sends the failure of a routed command. Status and
// code follow the error kind; the message is the same text a ZMQ client
// receives in its error reply.
func CommandErrorResponse(c *gin.Context, err error) {
	status, code := ClassifyError(err)
	writeError(c, status, code, err.Error(), nil)
}

func writeError(c *gin.Context, statusCode int, code, message string, err error) {
	apiError := &APIError{
		Code:    code,
		Message: message,
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.AbortWithStatusJSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: c.GetString(RequestIDKey),
	})
}

// ClassifyError maps the router's error taxonomy to an HTTP status and an
// error code.
func ClassifyError(err error) (int, string) {
	var parseErr *protocol.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadRequest, "INVALID_REQUEST"
	}

	var routingErr *transport.RoutingError
	if errors.As(err, &routingErr) {
		code := strings.ToUpper(routingErr.Kind.String())
		switch routingErr.Kind {
		case transport.RoutingNoDevice:
			return http.StatusServiceUnavailable, code
		case transport.RoutingAmbiguousTarget:
			return http.StatusConflict, code
		case transport.RoutingUnknownDevice:
			return http.StatusNotFound, code
		default:
			return http.StatusBadRequest, code
		}
	}

	var commErr *transport.CommunicationError
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout, "DEVICE_TIMEOUT"
	case errors.As(err, &commErr), errors.Is(err, transport.ErrNotConnected):
		return http.StatusBadGateway, "DEVICE_COMMUNICATION_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func errorCodeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

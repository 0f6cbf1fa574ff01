// internal/utils/utils_test.go
package utils

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"greymatter/internal/config"
	"greymatter/internal/protocol"
	"greymatter/pkg/transport"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"parse", &protocol.ParseError{Syntax: true}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"no device", transport.NewRoutingError(transport.RoutingNoDevice, "No Pico boards connected"), http.StatusServiceUnavailable, "NO_DEVICE"},
		{"ambiguous", transport.NewRoutingError(transport.RoutingAmbiguousTarget, "x"), http.StatusConflict, "AMBIGUOUS_TARGET"},
		{"unknown", transport.NewRoutingError(transport.RoutingUnknownDevice, "x"), http.StatusNotFound, "UNKNOWN_DEVICE"},
		{"meta", transport.NewRoutingError(transport.RoutingUnknownMeta, "x"), http.StatusBadRequest, "UNKNOWN_META"},
		{"timeout", fmt.Errorf("send: %w", transport.ErrTimeout), http.StatusGatewayTimeout, "DEVICE_TIMEOUT"},
		{"link", transport.NewCommunicationError("write", errors.New("gone")), http.StatusBadGateway, "DEVICE_COMMUNICATION_ERROR"},
		{"other", errors.New("Internal error: boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := ClassifyError(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("ClassifyError() = %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug level not enabled")
	}

	if _, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stderr"}); err == nil {
		t.Error("expected error for an invalid level")
	}
}

func TestBoardLogger_LogTransaction(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bl := NewBoardLogger(zap.New(core), "pico_1", "/dev/ttyACM1")

	bl.LogTransaction("*IDN?", 3*time.Millisecond, nil)
	bl.LogTransaction("FAULT?", time.Second, transport.ErrTimeout)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Message != "[pico_1] *IDN?" || entries[0].Level != zap.InfoLevel {
		t.Errorf("entry 0 = %s %q", entries[0].Level, entries[0].Message)
	}
	if entries[1].Message != "[pico_1] ERROR: Timeout waiting for response" || entries[1].Level != zap.WarnLevel {
		t.Errorf("entry 1 = %s %q", entries[1].Level, entries[1].Message)
	}
	if entries[1].ContextMap()["device"] != "pico_1" {
		t.Errorf("device field = %v", entries[1].ContextMap()["device"])
	}
}

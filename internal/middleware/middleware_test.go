// internal/middleware/middleware_test.go
package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"greymatter/internal/utils"
)

func newEngine(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(RecoveryMiddleware(logger))
	engine.Use(RequestIDMiddleware())
	engine.Use(LoggingMiddleware(utils.NewServiceLogger(logger, "test"), "/live"))

	engine.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })
	engine.GET("/panic", func(c *gin.Context) { panic("board table corrupted") })
	return engine
}

func TestRequestID(t *testing.T) {
	engine := newEngine(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Body.String() != "abc-123" || w.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("caller id not propagated: body %q header %q", w.Body.String(), w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	if len(w.Body.String()) != 36 || w.Header().Get(RequestIDHeader) != w.Body.String() {
		t.Errorf("generated id = %q, header %q", w.Body.String(), w.Header().Get(RequestIDHeader))
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	engine := newEngine(zap.New(core))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var resp utils.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Message != "Internal error: board table corrupted" || resp.RequestID == "" {
		t.Errorf("response = %+v", resp)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Errorf("panic not logged")
	}
}

func TestLogging_ProbesAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engine := newEngine(zap.New(core))

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/live", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/id", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("API request").All()
	if len(entries) != 3 {
		t.Fatalf("logged %d requests, want 3", len(entries))
	}
	want := []string{"debug", "info", "warn"}
	for i, e := range entries {
		if e.Level.String() != want[i] {
			t.Errorf("entry %d (%v) level = %s, want %s", i, e.ContextMap()["path"], e.Level, want[i])
		}
	}
}

// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"greymatter/internal/config"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// DefaultLogFile is used when file output is selected without a path.
const DefaultLogFile = "./logs/greymatter.log"

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	sink, err := newWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// newEncoder returns a JSON encoder, or a colored console encoder when
// format is "console".
func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	ec.LevelKey = "level"
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.MessageKey = "message"
	ec.StacktraceKey = "stacktrace"

	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// newWriteSyncer selects stdout, stderr or a rotated log file
func newWriteSyncer(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	path := cfg.Output
	if path == "" {
		path = DefaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
	return l, nil
}

// BoardLogger tags entries with the board's logical name and port.
type BoardLogger struct {
	*zap.Logger
	name string
}

// NewBoardLogger creates a board-specific logger
func NewBoardLogger(baseLogger *zap.Logger, name, port string) *BoardLogger {
	if baseLogger == nil {
		baseLogger = zap.NewNop()
	}
	return &BoardLogger{
		Logger: baseLogger.With(
			zap.String("device", name),
			zap.String("port", port),
			zap.String("component", "board"),
		),
		name: name,
	}
}

// LogTransaction logs one forwarded command as "[pico_N] cmd", or its
// failure at warn level.
func (bl *BoardLogger) LogTransaction(cmd string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("cmd", cmd),
		zap.Duration("duration", duration),
	}

	if err != nil {
		bl.Warn(fmt.Sprintf("[%s] ERROR: %v", bl.name, err), append(fields, zap.Error(err))...)
		return
	}
	bl.Info(fmt.Sprintf("[%s] %s", bl.name, cmd), fields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
}

// NewServiceLogger creates a service-specific logger. A nil base logger
// discards everything.
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	if baseLogger == nil {
		baseLogger = zap.NewNop()
	}
	return &ServiceLogger{
		Logger: baseLogger.With(
			zap.String("service", serviceName),
			zap.String("component", "service"),
		),
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// APIRequest describes one completed gateway request.
type APIRequest struct {
	Method    string
	Path      string
	ClientIP  string
	RequestID string
	Status    int
	Duration  time.Duration
	// Probe marks health probes, which are logged at debug level.
	Probe bool
}

// LogAPIRequest logs a gateway request at a level chosen from its status
func (sl *ServiceLogger) LogAPIRequest(req APIRequest) {
	level := zapcore.InfoLevel
	switch {
	case req.Status >= 500:
		level = zapcore.ErrorLevel
	case req.Status >= 400:
		level = zapcore.WarnLevel
	case req.Probe:
		level = zapcore.DebugLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("client_ip", req.ClientIP),
			zap.String("request_id", req.RequestID),
			zap.Int("status_code", req.Status),
			zap.Duration("duration", req.Duration),
		)
	}
}

// CloseLogger flushes buffered entries.
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}

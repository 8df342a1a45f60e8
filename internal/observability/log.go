// Package observability configures structured logging for the server.
//
// The MCP protocol owns stdout, so logs are written to stderr or, when
// configured, a file. Every message and string field is passed through the
// token redactor before it is written.
package observability

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"issueshepherd/server/internal/config"
	"issueshepherd/server/internal/redact"
)

var logger = zap.NewNop()

// Init builds the process logger from config. Safe to call once at startup;
// before Init the package logger is a no-op.
func Init(cfg config.LogConfig) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	logger = zap.New(core)
	return nil
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = logger.Sync()
}

// LogToolCall records one tool execution: duration, outcome, and a redacted
// error message when the call failed.
func LogToolCall(requestID, tool string, duration time.Duration, status, errMsg string) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("tool", tool),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.String("status", status),
	}
	if errMsg != "" {
		fields = append(fields, zap.String("error", redact.Token(errMsg)))
		logger.Error("tool call", fields...)
		return
	}
	logger.Info("tool call", fields...)
}

// LogRequest records one JSON-RPC request on the transport.
func LogRequest(method string, id any, duration time.Duration) {
	logger.Info("request",
		zap.String("method", method),
		zap.Any("id", id),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

// LogError records an out-of-band failure with its context.
func LogError(context string, err error) {
	logger.Error("error",
		zap.String("context", context),
		zap.String("error", redact.Token(err.Error())),
	)
}

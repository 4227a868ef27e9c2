package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, path string, statusCode int, duration time.Duration, fields map[string]interface{}) {
	merged := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}
	for k, v := range fields {
		merged[k] = v
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", merged)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", merged)
	default:
		log.InfoWithFields("HTTP request completed", merged)
	}
}

// LogUpstreamCall logs one call to the scraping service
func LogUpstreamCall(log Logger, operation, handle string, items int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation":   operation,
		"handle":      handle,
		"items":       items,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		log.WithError(err).ErrorWithFields("Upstream call failed", fields)
		return
	}
	log.InfoWithFields("Upstream call completed", fields)
}

// LogCacheEvent logs a cache hit, miss or write
func LogCacheEvent(log Logger, event, handle string) {
	log.DebugWithFields("Cache "+event, map[string]interface{}{
		"handle": handle,
		"event":  event,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := log.WithField("component", component)

	if len(config) > 0 {
		l = l.WithFields(config)
	}

	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

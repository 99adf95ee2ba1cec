package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

// Logger wraps the underlying zap logger with domain helpers
type Logger struct {
	*zap.SugaredLogger
}

// Config represents logger configuration
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// New builds a logger. Format "console" gives human readable output,
// anything else JSON.
func New(cfg Config) (*Logger, error) {
	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	if cfg.Output != "" {
		zcfg.OutputPaths = []string{cfg.Output}
	}

	base, err := zcfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{SugaredLogger: base.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithFields returns a child logger carrying the given fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(fieldsToArgs(fields)...)}
}

// WithContext attaches the request and user ids found in ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

// ContextWithRequestID stores the request id for later log lines.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithUserID stores the authenticated user id for later log lines.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequestIDFromContext returns the request id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LogAccessDecision records how an access check was resolved
func (l *Logger) LogAccessDecision(actorID, clientID, rule string, allowed bool) {
	l.WithFields(map[string]interface{}{
		"actor_id":  actorID,
		"client_id": clientID,
		"rule":      rule,
		"allowed":   allowed,
	}).Debug("Access decision")
}

// LogAccessRequest logs access request lifecycle events
func (l *Logger) LogAccessRequest(requestID, operation string, err error) {
	fields := map[string]interface{}{
		"request_id": requestID,
		"operation":  operation,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Warn("Access request operation failed")
	} else {
		l.WithFields(fields).Info("Access request operation completed")
	}
}

// LogRecommendationOperation logs recommendation-related operations
func (l *Logger) LogRecommendationOperation(recommendationID, operation string, assigned int, err error) {
	fields := map[string]interface{}{
		"recommendation_id": recommendationID,
		"operation":         operation,
		"assigned":          assigned,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Recommendation operation failed")
	} else {
		l.WithFields(fields).Info("Recommendation operation completed")
	}
}

// LogStorageOperation logs collection reads and writes
func (l *Logger) LogStorageOperation(collection, operation string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"collection": collection,
		"operation":  operation,
		"duration":   duration.Milliseconds(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Storage operation failed")
	} else {
		l.WithFields(fields).Debug("Storage operation completed")
	}
}

// LogAPIRequest logs served HTTP requests
func (l *Logger) LogAPIRequest(method, path string, status int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   status,
		"duration": duration.Milliseconds(),
	}

	switch {
	case status >= 500:
		l.WithFields(fields).Error("API request failed")
	case status >= 400:
		l.WithFields(fields).Warn("API request rejected")
	default:
		l.WithFields(fields).Info("API request completed")
	}
}

// Helper functions
func extractContextFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields["request_id"] = requestID
	}

	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		fields["user_id"] = userID
	}

	return fields
}

func fieldsToArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

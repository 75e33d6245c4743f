package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with risk-engine specific functionality
type Logger struct {
	*zap.Logger
	serviceName string
}

// ContextKey for request context values
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	ActorKey     ContextKey = "actor"
	TraceIDKey   ContextKey = "trace_id"
)

// New creates a new logger instance
func New(serviceName, environment string, debug bool) (*Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Add service metadata
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     environment,
		"pid":     os.Getpid(),
	}

	zapLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger:      zapLogger,
		serviceName: serviceName,
	}, nil
}

// NewNop returns a no-op logger for tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), serviceName: "test"}
}

// Named returns a named sub-logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		serviceName: l.serviceName,
	}
}

// WithContext returns a logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		fields = append(fields, zap.String("actor", actor))
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	return &Logger{
		Logger:      l.With(fields...),
		serviceName: l.serviceName,
	}
}

// WithMerchant returns a logger with merchant context
func (l *Logger) WithMerchant(merchantID string) *Logger {
	return &Logger{
		Logger:      l.With(zap.String("merchant_id", merchantID)),
		serviceName: l.serviceName,
	}
}

// AssessmentCompleted logs the completion of a risk assessment
func (l *Logger) AssessmentCompleted(merchantID string, score int, level string, configVersion int64, override bool) {
	l.Info("assessment completed",
		zap.String("merchant_id", merchantID),
		zap.Int("risk_score", score),
		zap.String("risk_level", level),
		zap.Int64("config_version", configVersion),
		zap.Bool("override_applied", override),
	)
}

// MerchantOnboarded logs merchant onboarding
func (l *Logger) MerchantOnboarded(merchantID, riskLevel, status string) {
	l.Info("merchant onboarded",
		zap.String("merchant_id", merchantID),
		zap.String("risk_level", riskLevel),
		zap.String("status", status),
	)
}

// ConfigLoaded logs configuration restore on startup
func (l *Logger) ConfigLoaded(version int64, count int) {
	l.Info("risk configuration loaded",
		zap.Int64("active_version", version),
		zap.Int("version_count", count),
	)
}

// ConfigUpdated logs publication of a new configuration version
func (l *Logger) ConfigUpdated(version int64, actor string) {
	l.Info("risk configuration updated",
		zap.Int64("version", version),
		zap.String("actor", actor),
	)
}

// AlertCreated logs alert creation
func (l *Logger) AlertCreated(alertID, merchantID, severity string) {
	l.Warn("alert created",
		zap.String("alert_id", alertID),
		zap.String("merchant_id", merchantID),
		zap.String("severity", severity),
	)
}

// AlertResolved logs alert resolution
func (l *Logger) AlertResolved(alertID, actor string) {
	l.Info("alert resolved",
		zap.String("alert_id", alertID),
		zap.String("actor", actor),
	)
}

// AuditRecorded logs creation of an audit entry
func (l *Logger) AuditRecorded(action, actor, targetID string) {
	l.Info("audit entry recorded",
		zap.String("action", action),
		zap.String("actor", actor),
		zap.String("target_id", targetID),
	)
}

// Helper field functions

// ErrorField creates an error field
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// StringField creates a string field
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates an int field
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Int64Field creates an int64 field
func Int64Field(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

// BoolField creates a bool field
func BoolField(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

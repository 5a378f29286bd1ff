package logger

import (
	"context"

	"go.uber.org/zap"
)

// traceIDKey ctx key carrying the request trace id
type traceIDKey struct{}

// WithTraceID returns a ctx carrying trace_id
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext extracts trace_id from ctx, empty if absent
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// CtxZapLogger context-aware zap logger wrapper
// module is bound at creation time; call sites only pass ctx
// Obtain instances through GetLogger() / Manager.GetLogger()
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *Config
}

// DebugCtx logs at Debug level (trace_id extracted automatically)
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// Debug logs at Debug level without a context
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// InfoCtx logs at Info level (trace_id extracted automatically)
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// Info logs at Info level without a context
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// WarnCtx logs at Warn level (trace_id extracted automatically)
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// Warn logs at Warn level without a context
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// ErrorCtx logs at Error level (trace_id extracted automatically)
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.enrichFields(ctx, fields)...)
}

// Error logs at Error level without a context
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With returns a logger with preset fields (chainable)
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// GetZapLogger exposes the underlying *zap.Logger for third-party integration
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

// enrichFields adds app_name and trace_id
// module is already attached by the Manager
func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	enriched := make([]zap.Field, 0, len(fields)+2)

	if l.config != nil && l.config.AppName != "" {
		enriched = append(enriched, zap.String("app_name", l.config.AppName))
	}

	if l.config == nil || l.config.EnableTraceID {
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			enriched = append(enriched, zap.String("trace_id", traceID))
		}
	}

	return append(enriched, fields...)
}

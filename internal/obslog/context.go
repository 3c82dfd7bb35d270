package obslog

import (
	"context"

	"go.uber.org/zap"
)

type requestCtxKey struct{}
type blockCtxKey struct{}

// ContextFields extracts correlation data from context for attachment to
// every log line emitted while that context is in scope.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	if blockID := BlockIDFromContext(ctx); blockID != "" {
		fields = append(fields, zap.String("block.id", blockID))
	}
	return fields
}

// WithRequestID attaches a request id to the context for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithBlockID attaches the block id under operation to the context.
func WithBlockID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, blockCtxKey{}, id)
}

// BlockIDFromContext extracts the block id, if any.
func BlockIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(blockCtxKey{}).(string); ok {
		return s
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores a Logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the Logger from context, or a no-op logger if absent.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}

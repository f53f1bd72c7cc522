package batch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContextKey string

const RunIDKey ContextKey = "run_id"

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// NewRunID generates a unique run ID
func NewRunID() string {
	return uuid.NewString()
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// GetContextLogger creates a logger with context information
func GetContextLogger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	if id := GetRunID(ctx); id != "" {
		return baseLogger.With(zap.String(string(RunIDKey), id))
	}
	return baseLogger
}

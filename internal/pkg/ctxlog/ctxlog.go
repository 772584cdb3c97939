// Package ctxlog carries a request- or message-scoped logger in a context.
package ctxlog

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// With derives a logger from base carrying args and stores it in ctx.
func With(ctx context.Context, base *slog.Logger, args ...any) (context.Context, *slog.Logger) {
	logger := base.With(args...)
	return WithLogger(ctx, logger), logger
}

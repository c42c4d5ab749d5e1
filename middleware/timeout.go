package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Timeout returns middleware that bounds each operation with a context
// deadline. A zero or negative duration disables the bound.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		err := next(ctx)
		if ctx.Err() == context.DeadlineExceeded {
			logger.Warn("operation hit deadline",
				slog.String("op", op.Name),
				slog.Duration("timeout", d),
			)
		}
		return err
	}
}

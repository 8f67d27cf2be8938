package middleware

import (
	"context"
	"time"

	"github.com/xraph/calcq/message"
)

// Timeout returns middleware that bounds handler execution time.
// The handler's context is canceled once d elapses; a d of zero
// disables the bound.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *message.CalculationRequest, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds fn with a derived deadline. fn must honor its context;
// there is no goroutine escape hatch here, so a fn that ignores
// cancellation simply runs long. A non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s exceeded %v: %w", name, timeout, err)
	}
	return err
}

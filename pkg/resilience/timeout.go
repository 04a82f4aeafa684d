package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that op hit its own deadline, as opposed to the
// caller's context ending. It unwraps to context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: deadline of %v exceeded", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// WithTimeout runs fn under a deadline of timeout derived from ctx. fn must
// honour its context. When the derived deadline fired and ctx is still live
// the error is a *TimeoutError; otherwise fn's error is returned as is. A
// non-positive timeout runs fn on ctx directly.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(opCtx)
	if err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Limit: timeout}
	}
	return err
}

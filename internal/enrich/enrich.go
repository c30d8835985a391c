package enrich

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Result carries either the loaded value or the fallback. Partial is set whenever
// the fallback was used; Err then holds the reason.
type Result[T any] struct {
	Value   T
	Partial bool
	Err     error
}

// BestEffort runs fn under timeout. On error or timeout it returns fallback instead of
// failing.
func BestEffort[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error), fallback T) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result[T]{Value: fallback, Partial: true, Err: out.err}
		}
		return Result[T]{Value: out.value}
	case <-ctx.Done():
		return Result[T]{Value: fallback, Partial: true, Err: errors.Wrap(ctx.Err(), "enrichment deadline")}
	}
}

// RetryOnce wraps fn so that an error accepted by shouldRetry triggers exactly one
// more attempt.
func RetryOnce[T any](fn func(ctx context.Context) (T, error), shouldRetry func(error) bool) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err == nil || !shouldRetry(err) || ctx.Err() != nil {
			return v, err
		}
		return fn(ctx)
	}
}

// NotTimeout is a retry predicate that skips deadline and cancellation errors.
func NotTimeout(err error) bool {
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

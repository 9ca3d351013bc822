package operation

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ChildFailure records one failed fan-out child.
type ChildFailure struct {
	Index int
	Key   string
	Err   error
}

// FanOutError aggregates every failed child of a fan-out in issuance order.
type FanOutError struct {
	Total    int
	Failures []ChildFailure
}

func (e *FanOutError) Error() string {
	first := e.Failures[0]
	return fmt.Sprintf("fan-out: %d of %d failed; first %q: %v", len(e.Failures), e.Total, first.Key, first.Err)
}

// Unwrap exposes every child error to errors.Is and errors.As.
func (e *FanOutError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// FanOut runs fn once per key on child operations, with at most limit
// running fn at the same time. Every child is joined. The results are in
// key order. If any child failed, the returned error is a *FanOutError and
// the slice holds the successful values at their positions.
func FanOut[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) (T, error)) ([]T, error) {
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	children := make([]*Operation[T], len(keys))
	for i, key := range keys {
		children[i] = New("fetch "+key, func(ctx context.Context) (T, error) {
			if err := sem.Acquire(ctx, 1); err != nil {
				var zero T
				return zero, err
			}
			defer sem.Release(1)
			fanoutInflight.Inc()
			defer fanoutInflight.Dec()
			return fn(ctx, key)
		})
		children[i].Start(ctx)
	}

	out := make([]T, len(keys))
	var failures []ChildFailure
	for i, child := range children {
		res := child.Wait()
		if res.Ok() {
			out[i] = res.Value
			continue
		}
		failures = append(failures, ChildFailure{Index: i, Key: keys[i], Err: res.Err})
	}
	if len(failures) > 0 {
		return out, &FanOutError{Total: len(keys), Failures: failures}
	}
	return out, nil
}

// internal/fanout/fanout.go

// Package fanout runs independent tasks in parallel and collects every
// outcome. One task's failure never cancels its siblings; callers decide
// per result whether a failure matters.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of a single task.
type Result[T any] struct {
	Value T
	Err   error
}

// All runs fn for every index in [0, n) with at most limit tasks in
// flight (limit <= 0 means unbounded), waits for all of them, and returns
// the results in task order. Each task writes only to its own slot.
func All[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	results := make([]Result[T], n)

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i].Value, results[i].Err = fn(ctx, i)
			return nil
		})
	}

	// Tasks always return nil; Wait only fences completion.
	_ = g.Wait()
	return results
}

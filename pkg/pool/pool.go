// Package pool runs a batch of tasks with bounded parallelism while
// preserving submission order in the results.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task produces one result of type T.
type Task[T any] func(ctx context.Context) (T, error)

// Run executes all tasks with at most limit in flight and returns their
// results indexed by submission order.
//
// Contract:
//   - if len(tasks) <= limit, every task runs in parallel;
//   - the first failing task cancels the shared context and its error is
//     returned;
//   - no task is ever started twice;
//   - no global state.
func Run[T any](ctx context.Context, tasks []Task[T], limit int) ([]T, error) {
	if limit < 1 {
		return nil, fmt.Errorf("pool: limit must be at least 1, got %d", limit)
	}

	results := make([]T, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			// Skip work that cannot be observed anymore.
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := task(ctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Package concurrency implements the bounded fan-out primitives of §4.10:
// BoundedGather runs a fixed set of tasks under a concurrency cap and
// returns their results in the original order, isolating task-level
// failures so one bad task does not cancel the others; BoundedQueueProcess
// runs a long-lived pool of workers draining a shared input queue.
//
// Both are built on golang.org/x/sync's semaphore and errgroup, which the
// teacher's own go.mod already pulls in transitively — promoted here to a
// direct, explicitly exercised dependency.
package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Result pairs a task's output with any error it produced, so a caller can
// tell "task 3 failed" from "task 3 returned the zero value".
type Result[T any] struct {
	Value T
	Err   error
}

// BoundedGather runs fn(item) for every item in items, at most maxConcurrent
// at a time, and returns one Result per item in the same order as items.
// A single task's error never prevents the others from running or being
// reported — callers inspect each Result individually.
func BoundedGather[T, R any](ctx context.Context, items []T, maxConcurrent int64, fn func(context.Context, T) (R, error)) ([]Result[R], error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(maxConcurrent)
	results := make([]Result[R], len(items))

	g, gctx := errgroup.WithContext(context.Background())
	for i, item := range items {
		i, item := i, item
		if err := sem.Acquire(ctx, 1); err != nil {
			return results, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			value, err := fn(gctx, item)
			results[i] = Result[R]{Value: value, Err: err}
			return nil // task errors are carried in Result, not propagated
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// QueueProcessor is the callback BoundedQueueProcess runs once per item
// drained from the input channel.
type QueueProcessor[T any] func(context.Context, T) error

// BoundedQueueProcess starts workerCount long-lived workers, each pulling
// items from in until it is closed, applying process to each. It blocks
// until all items are processed and every worker has exited. The first
// non-nil error from process is returned once all workers finish; workers
// keep draining in after an error so the queue is never left half-consumed.
func BoundedQueueProcess[T any](ctx context.Context, in <-chan T, workerCount int, process QueueProcessor[T]) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		g.Go(func() error {
			var firstErr error
			for {
				select {
				case item, ok := <-in:
					if !ok {
						return firstErr
					}
					if err := process(gctx, item); err != nil && firstErr == nil {
						firstErr = err
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}
	return g.Wait()
}

// Package pool runs independent tasks with bounded concurrency.
package pool

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work producing one result.
type Task[T any] func() (T, error)

// Run executes tasks with at most limit of them in progress and returns
// their results in input order.
//
// Workers claim indices from a shared cursor, so no task runs twice. If a
// task fails, Run returns the first error once every in-flight task has
// returned; tasks not yet claimed are never started and running siblings
// are not cancelled. A limit below 1 is treated as 1.
func Run[T any](tasks []Task[T], limit int) ([]T, error) {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	nWorkers := limit
	if nWorkers < 1 {
		nWorkers = 1
	}
	if nWorkers > len(tasks) {
		nWorkers = len(tasks)
	}

	var (
		cursor atomic.Int64
		failed atomic.Bool
		g      errgroup.Group
	)

	for range nWorkers {
		g.Go(func() error {
			for !failed.Load() {
				i := int(cursor.Add(1)) - 1
				if i >= len(tasks) {
					return nil
				}

				result, err := tasks[i]()
				if err != nil {
					failed.Store(true)
					return err
				}
				results[i] = result
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

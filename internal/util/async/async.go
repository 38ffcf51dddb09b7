package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently and waits for all of them to finish.
// At most limit tasks run at the same time; limit <= 0 means no limit.
// The returned error joins every task failure, each prefixed with the task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "prod-indexer-0", Func: provisionIndexer0},
//	    {Name: "prod-indexer-1", Func: provisionIndexer1},
//	}
//	if err := RunParallel(ctx, tasks, 0); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	// Tasks never return an error to the group so a failure does not
	// cancel its siblings.
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

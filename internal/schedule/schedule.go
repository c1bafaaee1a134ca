package schedule

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task processes item i. Results must be stored by index, never by
// completion order.
type Task func(ctx context.Context, i int) error

// Scheduler runs n tasks and returns the first error. Remaining tasks are
// not started once a task fails or ctx is done.
type Scheduler interface {
	Run(ctx context.Context, n int, task Task) error
}

// New returns Sequential for concurrency <= 1 and Bounded otherwise.
func New(concurrency int) Scheduler {
	if concurrency <= 1 {
		return Sequential{}
	}
	return Bounded{Limit: concurrency}
}

// Sequential runs tasks one after another in index order.
type Sequential struct{}

func (Sequential) Run(ctx context.Context, n int, task Task) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := task(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Bounded runs at most Limit tasks at a time.
type Bounded struct {
	Limit int
}

func (b Bounded) Run(ctx context.Context, n int, task Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Limit, 1))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

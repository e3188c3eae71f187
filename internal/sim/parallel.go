package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Sweep runs n independent jobs concurrently and returns their results in
// job order. The first failure cancels the context handed to the others.
func Sweep[T any](ctx context.Context, n int, job func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := job(ctx, i)
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

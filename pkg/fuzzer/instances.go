package fuzzer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunInstances runs fn for ids 0..n-1 in parallel. The first error cancels
// the context passed to the others and is returned once all have exited.
func RunInstances(ctx context.Context, n int, fn func(ctx context.Context, id int) error) error {
	if n < 1 {
		return fmt.Errorf("need at least one instance, got %d", n)
	}
	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < n; id++ {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				return fmt.Errorf("instance %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

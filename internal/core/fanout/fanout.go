// Package fanout runs a function over a slice with a cap on in-flight calls.
package fanout

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item using at most limit concurrent workers that pull
// the next index from a shared cursor. results[i] always corresponds to items[i].
// The first error cancels ctx for the remaining calls and is returned.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	g, gctx := errgroup.WithContext(ctx)
	var cursor atomic.Int64

	for w := 0; w < limit; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := fn(gctx, i, items[i])
				if err != nil {
					return err
				}
				results[i] = r
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Package parallel runs independent units of work with bounded concurrency.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls mapFunc for every element of input with at most limit calls in
// flight (no bound when limit <= 0) and returns the results in input order.
// Failures do not stop the other calls: each element gets its own error.
// Elements not started before ctx is done get ctx.Err() without mapFunc
// being called.
func Map[E, D any](ctx context.Context, limit int, input []E, mapFunc func(context.Context, E) (D, error)) ([]D, []error) {
	out := make([]D, len(input))
	errs := make([]error, len(input))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, entry := range input {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			out[i], errs[i] = mapFunc(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}

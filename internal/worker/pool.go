package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// OrderedMap applies fn to every element of in using at most workers
// goroutines. out[i] always corresponds to in[i], whatever the scheduling.
// The first error cancels the remaining work; a panic in fn is returned as
// an error instead of crashing the process.
func OrderedMap[T, R any](ctx context.Context, workers int, in []T, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	if len(in) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range in {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker panic on item %d: %v", i, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, i, in[i])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

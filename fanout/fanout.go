// Package fanout implements the bounded-concurrency primitive used by
// every sync phase (§5, §9): run a function over a slice of items with
// at most n running at once, cancelling the rest on the first error.
// Grounded on the teacher's blockstore.Prefetch worker pool, generalized
// with golang.org/x/sync/errgroup instead of a hand-rolled channel and
// WaitGroup.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency cap spec.md §5 calls out for the blob,
// loaded-blob, and bake upload phases.
const DefaultLimit = 25

// BoundedEach calls fn(ctx, item) for every item in items, running at
// most limit calls concurrently. It returns the first error from any
// call, after which the shared context is cancelled and no further
// calls to fn are started. A limit <= 0 means DefaultLimit.
func BoundedEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	if limit <= 0 {
		limit = DefaultLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, item)
		})
	}

	return g.Wait()
}

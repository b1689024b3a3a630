// Package closure computes the reference-graph closure of a set of
// recipes (§4.D): every recipe and blob reachable from the seeds,
// suitable for a single sync pass. Grounded on the teacher's
// blockstore.Walk/GetSubgraph queue-driven traversal, but walking fixed
// Recipe struct fields instead of a generic IPLD selector.
package closure

import (
	"context"
	"fmt"

	"brioche/brioerr"
	"brioche/hashid"
	"brioche/recipe"
)

// RecipeStore is the minimal local-lookup interface Closure needs.
// localstore.Store implements it.
type RecipeStore interface {
	GetRecipe(ctx context.Context, h hashid.RecipeHash) (recipe.Recipe, bool, error)
}

// References is the closed set of recipes and blobs reachable from a
// seed set: §3's RecipeReferences.
type References struct {
	Recipes map[hashid.RecipeHash]recipe.Recipe
	Blobs   map[hashid.BlobHash]struct{}
}

func newReferences() References {
	return References{
		Recipes: make(map[hashid.RecipeHash]recipe.Recipe),
		Blobs:   make(map[hashid.BlobHash]struct{}),
	}
}

// Closure walks every recipe reachable from seeds via a breadth-first
// search, fetching each unvisited recipe from store exactly once, and
// returns the union of all visited recipes and the blobs they own. The
// result is deterministic up to map iteration order; the seed set
// itself need not be deduplicated.
func Closure(ctx context.Context, store RecipeStore, seeds []hashid.RecipeHash) (References, error) {
	refs := newReferences()

	queue := make([]hashid.RecipeHash, 0, len(seeds))
	queue = append(queue, seeds...)
	visited := make(map[hashid.RecipeHash]struct{}, len(seeds))

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return References{}, err
		}

		h := queue[0]
		queue = queue[1:]

		if _, ok := visited[h]; ok {
			continue
		}
		visited[h] = struct{}{}

		r, ok, err := store.GetRecipe(ctx, h)
		if err != nil {
			return References{}, fmt.Errorf("closure: fetch recipe %s: %w", h, err)
		}
		if !ok {
			return References{}, brioerr.Wrap(brioerr.ErrNotFound, "closure: recipe %s not found in local store", h)
		}

		refs.Recipes[h] = r
		for _, b := range r.Blobs() {
			refs.Blobs[b] = struct{}{}
		}

		for _, child := range r.References() {
			if _, ok := visited[child]; !ok {
				queue = append(queue, child)
			}
		}
	}

	return refs, nil
}

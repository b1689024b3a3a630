// Package localstore is the local, badger-backed cache of recipes and
// project definitions (§6's "recipe/artifact database, opaque
// key-value, outside core"). Adapted from the teacher's datastore
// package: same badger4 backend and Iterator/Clear channel idiom, with
// a flat "kind/hash" key replacing the teacher's MST-indexed
// collections (the MST implementation the teacher's code paths
// reference was never included in the retrieval pack).
package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"brioche/hashid"
	"brioche/recipe"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badger4 "github.com/ipfs/go-ds-badger4"
)

const (
	recipeCollection  = "recipe"
	projectCollection = "project"
)

// Store is a local cache of recipes and projects, backed by badger.
// It implements closure.RecipeStore.
type Store struct {
	ds *badger4.Datastore
}

// Open opens (creating if necessary) a badger store at path.
func Open(path string) (*Store, error) {
	bds, err := badger4.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	return &Store{ds: bds}, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.ds.Close()
}

func recipeKey(h hashid.RecipeHash) ds.Key {
	return ds.NewKey(fmt.Sprintf("/%s/%s", recipeCollection, h))
}

func projectKey(h hashid.ProjectHash) ds.Key {
	return ds.NewKey(fmt.Sprintf("/%s/%s", projectCollection, h))
}

// PutRecipe stores a recipe under its hash. The local store persists a
// JSON encoding (decodable, for GetRecipe) rather than recipe.Canonical
// (a one-way digest input) — canonical bytes are only ever computed
// on demand for hashing.
func (s *Store) PutRecipe(ctx context.Context, h hashid.RecipeHash, r recipe.Recipe) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("localstore: marshal recipe %s: %w", h, err)
	}
	if err := s.ds.Put(ctx, recipeKey(h), b); err != nil {
		return fmt.Errorf("localstore: put recipe %s: %w", h, err)
	}
	return nil
}

// GetRecipe implements closure.RecipeStore.
func (s *Store) GetRecipe(ctx context.Context, h hashid.RecipeHash) (recipe.Recipe, bool, error) {
	b, ok, err := s.has(ctx, recipeKey(h))
	if err != nil || !ok {
		return recipe.Recipe{}, ok, err
	}
	var r recipe.Recipe
	if err := json.Unmarshal(b, &r); err != nil {
		return recipe.Recipe{}, false, fmt.Errorf("localstore: unmarshal recipe %s: %w", h, err)
	}
	return r, true, nil
}

// HasRecipe reports whether a recipe hash is known locally.
func (s *Store) HasRecipe(ctx context.Context, h hashid.RecipeHash) (bool, error) {
	_, ok, err := s.has(ctx, recipeKey(h))
	return ok, err
}

// PutProject stores a project definition's canonical bytes under its hash.
func (s *Store) PutProject(ctx context.Context, h hashid.ProjectHash, canonical []byte) error {
	if err := s.ds.Put(ctx, projectKey(h), canonical); err != nil {
		return fmt.Errorf("localstore: put project %s: %w", h, err)
	}
	return nil
}

// HasProject reports whether a project hash is known locally.
func (s *Store) HasProject(ctx context.Context, h hashid.ProjectHash) (bool, error) {
	_, ok, err := s.has(ctx, projectKey(h))
	return ok, err
}

func (s *Store) has(ctx context.Context, key ds.Key) ([]byte, bool, error) {
	v, err := s.ds.Get(ctx, key)
	if err != nil {
		if err == ds.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Clear removes every key in the store, mirroring the teacher's
// batch-delete-then-commit Clear.
func (s *Store) Clear(ctx context.Context) error {
	q, err := s.ds.Query(ctx, query.Query{KeysOnly: true})
	if err != nil {
		return fmt.Errorf("localstore: query for clear: %w", err)
	}
	defer q.Close()

	b, err := s.ds.Batch(ctx)
	if err != nil {
		return fmt.Errorf("localstore: start batch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-q.Next():
			if !ok {
				return b.Commit(ctx)
			}
			if res.Error != nil {
				return res.Error
			}
			if err := b.Delete(ctx, ds.NewKey(res.Key)); err != nil {
				return err
			}
		}
	}
}

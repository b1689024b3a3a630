package closure

import (
	"context"
	"errors"
	"testing"

	"brioche/brioerr"
	"brioche/hashid"
	"brioche/recipe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	recipes map[hashid.RecipeHash]recipe.Recipe
}

func (f *fakeStore) GetRecipe(ctx context.Context, h hashid.RecipeHash) (recipe.Recipe, bool, error) {
	r, ok := f.recipes[h]
	return r, ok, nil
}

func mustHash(t *testing.T, r recipe.Recipe) hashid.RecipeHash {
	t.Helper()
	h, err := r.Hash()
	require.NoError(t, err)
	return h
}

func TestClosureWalksChainOfReferences(t *testing.T) {
	leafBlob := hashid.SumBlob([]byte("leaf"))
	leaf := recipe.Recipe{Kind: recipe.KindCreateFile, Blob: leafBlob}
	leafHash := mustHash(t, leaf)

	mid := recipe.Recipe{Kind: recipe.KindUnpack, Archive: leafHash, Compression: "gzip"}
	midHash := mustHash(t, mid)

	root := recipe.Recipe{Kind: recipe.KindSync, Inner: midHash}
	rootHash := mustHash(t, root)

	store := &fakeStore{recipes: map[hashid.RecipeHash]recipe.Recipe{
		rootHash: root,
		midHash:  mid,
		leafHash: leaf,
	}}

	refs, err := Closure(context.Background(), store, []hashid.RecipeHash{rootHash})
	require.NoError(t, err)

	assert.Len(t, refs.Recipes, 3)
	assert.Contains(t, refs.Recipes, rootHash)
	assert.Contains(t, refs.Recipes, midHash)
	assert.Contains(t, refs.Recipes, leafHash)
	assert.Contains(t, refs.Blobs, leafBlob)
}

func TestClosureHandlesDiamondWithoutRevisiting(t *testing.T) {
	blob := hashid.SumBlob([]byte("shared"))
	shared := recipe.Recipe{Kind: recipe.KindCreateFile, Blob: blob}
	sharedHash := mustHash(t, shared)

	merge := recipe.Recipe{Kind: recipe.KindMerge, Directories: []hashid.RecipeHash{sharedHash, sharedHash}}
	mergeHash := mustHash(t, merge)

	store := &fakeStore{recipes: map[hashid.RecipeHash]recipe.Recipe{
		mergeHash:  merge,
		sharedHash: shared,
	}}

	refs, err := Closure(context.Background(), store, []hashid.RecipeHash{mergeHash})
	require.NoError(t, err)
	assert.Len(t, refs.Recipes, 2)
}

func TestClosureMissingRecipeErrors(t *testing.T) {
	store := &fakeStore{recipes: map[hashid.RecipeHash]recipe.Recipe{}}
	missing := hashid.SumRecipe([]byte("missing"))

	_, err := Closure(context.Background(), store, []hashid.RecipeHash{missing})
	require.Error(t, err)
	assert.True(t, errors.Is(err, brioerr.ErrNotFound))
}

func TestClosureEmptySeeds(t *testing.T) {
	store := &fakeStore{recipes: map[hashid.RecipeHash]recipe.Recipe{}}
	refs, err := Closure(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Empty(t, refs.Recipes)
	assert.Empty(t, refs.Blobs)
}

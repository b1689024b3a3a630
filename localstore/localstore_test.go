package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"brioche/hashid"
	"brioche/recipe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRecipeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := recipe.Recipe{
		Kind: recipe.KindCreateFile,
		Blob: hashid.SumBlob([]byte("content")),
	}
	h, err := r.Hash()
	require.NoError(t, err)

	require.NoError(t, s.PutRecipe(ctx, h, r))

	got, ok, err := s.GetRecipe(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.Kind, got.Kind)
	assert.Equal(t, r.Blob, got.Blob)
}

func TestGetRecipeMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetRecipe(context.Background(), hashid.SumRecipe([]byte("nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	h := hashid.SumProject([]byte("a project"))
	ok, err := s.HasProject(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutProject(ctx, h, []byte("a project")))

	ok, err = s.HasProject(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := recipe.Recipe{Kind: recipe.KindCreateFile, Blob: hashid.SumBlob([]byte("x"))}
	h, err := r.Hash()
	require.NoError(t, err)
	require.NoError(t, s.PutRecipe(ctx, h, r))

	require.NoError(t, s.Clear(ctx))

	_, ok, err := s.GetRecipe(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

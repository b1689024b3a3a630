package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"brioche/brioerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestImmutableLoadHashesContent(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewImmutable()

	id, data, err := v.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, ok := id.Hash()
	assert.True(t, ok, "immutable VFS should assign a hash identity")
}

func TestImmutableLoadSamePathDifferentContentDiffers(t *testing.T) {
	path := writeTemp(t, "v1")
	v := NewImmutable()

	id1, _, err := v.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	// Immutable mode has no cache invalidation on disk mutation within
	// LoadCached; Load only rereads when the path has never been seen.
	// To exercise a true reload we use a fresh VFS.
	v2 := NewImmutable()
	id2, _, err := v2.Load(path)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestMutableLoadAssignsULID(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewMutable()

	id, _, err := v.Load(path)
	require.NoError(t, err)

	_, ok := id.Mutable()
	assert.True(t, ok, "mutable VFS should assign a ULID identity")
}

func TestMutableLoadIsIdempotent(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewMutable()

	id1, _, err := v.Load(path)
	require.NoError(t, err)
	id2, _, err := v.Load(path)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestUpdateReplacesMutableContents(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewMutable()

	id, _, err := v.Load(path)
	require.NoError(t, err)

	require.NoError(t, v.Update(id, []byte("updated")))

	data, ok := v.Read(id)
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), data)
}

func TestUpdateRejectsHashIdentity(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewImmutable()

	id, _, err := v.Load(path)
	require.NoError(t, err)

	err = v.Update(id, []byte("nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, brioerr.ErrInvariantViolation))
}

func TestUpdateRejectsImmutableVFS(t *testing.T) {
	// A mutable FileId cannot even exist in an immutable VFS's table,
	// but Update should fail defensively regardless of where the id
	// came from.
	mutV := NewMutable()
	path := writeTemp(t, "hello")
	id, _, err := mutV.Load(path)
	require.NoError(t, err)

	immV := NewImmutable()
	err = immV.Update(id, []byte("nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, brioerr.ErrInvariantViolation))
}

func TestLocationRoundTrip(t *testing.T) {
	path := writeTemp(t, "hello")
	v := NewImmutable()

	id, _, err := v.Load(path)
	require.NoError(t, err)

	loc, ok := v.Location(id)
	require.True(t, ok)
	assert.Equal(t, path, loc)
}

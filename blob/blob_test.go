package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"brioche/brioerr"
	"brioche/hashid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveReadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	content := []byte("hello blob store")
	h, err := s.Save(context.Background(), bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, hashid.SumBlob(content), h)

	got, err := s.Read(h)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestHasReflectsSavedBlobs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	h := hashid.SumBlob([]byte("never saved"))
	assert.False(t, s.Has(h))

	saved, err := s.Save(context.Background(), bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.True(t, s.Has(saved))
}

func TestReadMissingBlobIsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(hashid.SumBlob([]byte("missing")))
	assert.True(t, errors.Is(err, brioerr.ErrNotFound))
}

func TestOpenReaderStreams(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	content := []byte("streamed content")
	h, err := s.Save(context.Background(), bytes.NewReader(content))
	require.NoError(t, err)

	r, err := s.OpenReader(h)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestConcurrentSavesRespectPermits(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			_, err := s.Save(context.Background(), bytes.NewReader([]byte{byte(i)}))
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}

// Package blob implements the on-disk, content-addressed blob store
// (§4.B): a sharded filesystem tree keyed by BLAKE3 digest, with an LRU
// read cache and a bounded number of concurrent writers.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"brioche/brioerr"
	"brioche/hashid"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

// DefaultSavePermits bounds how many blobs can be written concurrently,
// per §5's process-wide save-permit semaphore.
const DefaultSavePermits = 25

// DefaultCacheSize is the number of recently-read blobs kept in memory.
const DefaultCacheSize = 1000

// Store is a sharded, content-addressed blob store rooted at a
// directory on the local filesystem.
type Store struct {
	root    string
	permits *semaphore.Weighted
	cache   *lru.Cache[hashid.BlobHash, []byte]
}

// Open prepares a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, brioerr.Wrap(brioerr.ErrIO, "blob: create root %s", dir)
	}
	cache, err := lru.New[hashid.BlobHash, []byte](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("blob: new cache: %w", err)
	}
	return &Store{
		root:    dir,
		permits: semaphore.NewWeighted(DefaultSavePermits),
		cache:   cache,
	}, nil
}

// path returns the sharded on-disk path for a blob hash: the first two
// hex characters become a subdirectory, bounding directory fanout the
// way a content-addressed store typically shards a flat keyspace.
func (s *Store) path(h hashid.BlobHash) string {
	hex := h.String()
	return filepath.Join(s.root, hex[:2], hex)
}

// Has reports whether a blob is already stored, without reading it.
func (s *Store) Has(h hashid.BlobHash) bool {
	if _, ok := s.cache.Get(h); ok {
		return true
	}
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Save writes data to the store under its BLAKE3 hash, computing the
// digest while writing and returning the resulting BlobHash. The write
// goes to a uniquely named temp file under <root>/tmp and is renamed
// into its shard directory only after a successful close, so a reader
// can never observe a partially written blob.
func (s *Store) Save(ctx context.Context, r io.Reader) (hashid.BlobHash, error) {
	if err := s.permits.Acquire(ctx, 1); err != nil {
		return hashid.BlobHash{}, fmt.Errorf("blob: acquire save permit: %w", err)
	}
	defer s.permits.Release(1)

	hasher := hashid.NewBlobHasher()
	tmpDir := filepath.Join(s.root, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: create tmp dir")
	}

	tmpPath := filepath.Join(tmpDir, uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: create temp file")
	}
	defer os.Remove(tmpPath)

	tee := io.TeeReader(r, hasher)
	if _, err := io.Copy(f, tee); err != nil {
		f.Close()
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: write temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: sync temp file")
	}
	if err := f.Close(); err != nil {
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: close temp file")
	}

	var sum [hashid.Size]byte
	copy(sum[:], hasher.Sum(nil))
	h := hashid.BlobHash(sum)

	dst := s.path(h)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: create shard dir")
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return hashid.BlobHash{}, brioerr.Wrap(brioerr.ErrIO, "blob: rename into place")
	}

	return h, nil
}

// Read returns a blob's full contents, consulting the LRU cache first.
func (s *Store) Read(h hashid.BlobHash) ([]byte, error) {
	if data, ok := s.cache.Get(h); ok {
		return data, nil
	}

	data, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, brioerr.Wrap(brioerr.ErrNotFound, "blob: %s", h)
		}
		return nil, brioerr.Wrap(brioerr.ErrIO, "blob: read %s", h)
	}

	if got := hashid.SumBlob(data); got != h {
		return nil, brioerr.Wrap(brioerr.ErrHashMismatch, "blob: %s on disk hashes to %s", h, got)
	}

	s.cache.Add(h, data)
	return data, nil
}

// OpenReader returns a streaming reader for a blob's contents, bypassing the
// cache; callers that only need to forward bytes (e.g. send_blob) should
// prefer this over Read to avoid buffering large blobs twice.
func (s *Store) OpenReader(h hashid.BlobHash) (io.ReadCloser, error) {
	f, err := os.Open(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, brioerr.Wrap(brioerr.ErrNotFound, "blob: %s", h)
		}
		return nil, brioerr.Wrap(brioerr.ErrIO, "blob: open %s", h)
	}
	return f, nil
}

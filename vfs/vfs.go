// Package vfs implements the in-process virtual filesystem (§4.C): a
// cache from filesystem paths to file contents, identified either by
// content hash (immutable mode) or by an assigned ULID (mutable mode).
// Grounded on original_source's vfs.rs for load/update semantics and on
// the teacher's single-lock, map-backed store idiom.
package vfs

import (
	"fmt"
	"os"
	"sync"

	"brioche/brioerr"
	"brioche/hashid"
)

// VFS caches loaded file contents under one of two identity schemes,
// selected at construction time and fixed for the VFS's lifetime.
type VFS struct {
	mu sync.RWMutex

	mutable bool

	contents       map[hashid.FileID][]byte
	locationsToIDs map[string]hashid.FileID
	idsToLocations map[hashid.FileID]string
}

// NewImmutable returns a VFS whose FileIds are BLAKE3 content hashes of
// the bytes read when a path is first loaded; later Loads of that path
// return the cached FileId and contents without rereading the disk, and
// Update is never valid.
func NewImmutable() *VFS {
	return newVFS(false)
}

// NewMutable returns a VFS whose FileIds are ULIDs assigned once per
// path: loading the same path always yields the same FileId even after
// its on-disk contents change, and Update lets a caller push new
// contents under that identity (e.g. a build sandbox's working tree).
func NewMutable() *VFS {
	return newVFS(true)
}

func newVFS(mutable bool) *VFS {
	return &VFS{
		mutable:        mutable,
		contents:       make(map[hashid.FileID][]byte),
		locationsToIDs: make(map[string]hashid.FileID),
		idsToLocations: make(map[hashid.FileID]string),
	}
}

// Load reads path from the underlying filesystem, assigning it a
// FileId per the VFS's mode, and caches the result. A path already
// loaded into a mutable VFS returns its existing FileId and cached
// contents without touching disk again; use LoadCached to check that
// without reading.
func (v *VFS) Load(path string) (hashid.FileID, []byte, error) {
	if cached, data, ok := v.LoadCached(path); ok {
		return cached, data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return hashid.FileID{}, nil, fmt.Errorf("vfs: read %s: %w", path, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Re-check under the write lock: another goroutine may have loaded
	// this path while we were reading it from disk.
	if id, ok := v.locationsToIDs[path]; ok {
		return id, v.contents[id], nil
	}

	var id hashid.FileID
	if v.mutable {
		id, err = hashid.NewMutableFileID()
		if err != nil {
			return hashid.FileID{}, nil, fmt.Errorf("vfs: assign mutable id for %s: %w", path, err)
		}
	} else {
		id = hashid.SumFileContents(data)
	}

	v.contents[id] = data
	v.locationsToIDs[path] = id
	if _, ok := v.idsToLocations[id]; !ok {
		v.idsToLocations[id] = path
	}

	return id, data, nil
}

// LoadCached returns a path's cached FileId and contents without
// reading the filesystem, reporting false if the path has never been
// loaded.
func (v *VFS) LoadCached(path string) (hashid.FileID, []byte, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	id, ok := v.locationsToIDs[path]
	if !ok {
		return hashid.FileID{}, nil, false
	}
	return id, v.contents[id], true
}

// Read returns the cached contents for a FileId already known to this
// VFS, reporting false if it has never been loaded or updated.
func (v *VFS) Read(id hashid.FileID) ([]byte, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	data, ok := v.contents[id]
	return data, ok
}

// Update replaces the contents cached under a mutable FileId. It is an
// error to call Update with a hash identity, or on an immutable VFS:
// content hash identities are a commitment to specific bytes, so
// changing them in place would silently break that commitment.
func (v *VFS) Update(id hashid.FileID, contents []byte) error {
	if _, ok := id.Mutable(); !ok {
		return brioerr.Wrap(brioerr.ErrInvariantViolation, "vfs: Update called with non-mutable FileId %s", id)
	}
	if !v.mutable {
		return brioerr.Wrap(brioerr.ErrInvariantViolation, "vfs: Update called on an immutable VFS")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.contents[id]; !ok {
		return fmt.Errorf("vfs: Update called with unknown FileId %s", id)
	}
	v.contents[id] = contents
	return nil
}

// Location returns the filesystem path a FileId was originally loaded
// from, if any.
func (v *VFS) Location(id hashid.FileID) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	loc, ok := v.idsToLocations[id]
	return loc, ok
}

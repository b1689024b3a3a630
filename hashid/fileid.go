package hashid

import (
	"encoding/hex"
	"fmt"

	"brioche/brioerr"
	"brioche/internal/ulid"

	"lukechampine.com/blake3"
)

// FileKind distinguishes the two identities a FileId can hold.
type FileKind int

const (
	// FileKindHash identifies an immutable file by the BLAKE3 digest of
	// its contents.
	FileKindHash FileKind = iota
	// FileKindMutable identifies a file that may be overwritten in
	// place; its identity is an opaque ULID rather than a content hash.
	FileKindMutable
)

// FileID is the VFS's dual-identity file identifier: either the BLAKE3
// hash of a file's contents (immutable VFS) or a ULID assigned at load
// time (mutable VFS). The two forms are distinguished on the wire by
// length alone: 64 hex characters for a hash, 26 Crockford base32
// characters for a ULID.
type FileID struct {
	kind    FileKind
	hash    [Size]byte
	mutable ulid.ULID
}

// NewFileIDHash builds a hash-identity FileId from a content digest.
func NewFileIDHash(h [Size]byte) FileID {
	return FileID{kind: FileKindHash, hash: h}
}

// NewFileIDMutable builds a mutable-identity FileId from a ULID.
func NewFileIDMutable(id ulid.ULID) FileID {
	return FileID{kind: FileKindMutable, mutable: id}
}

// SumFileContents computes the hash-identity FileId for content bytes.
func SumFileContents(data []byte) FileID {
	return NewFileIDHash(sum(data))
}

// NewMutableFileID allocates a fresh mutable-identity FileId.
func NewMutableFileID() (FileID, error) {
	id, err := ulid.New()
	if err != nil {
		return FileID{}, fmt.Errorf("hashid: new mutable file id: %w", err)
	}
	return NewFileIDMutable(id), nil
}

// Kind reports which identity this FileId holds.
func (f FileID) Kind() FileKind { return f.kind }

// Hash returns the content digest and true if this is a hash identity.
func (f FileID) Hash() ([Size]byte, bool) {
	if f.kind != FileKindHash {
		return [Size]byte{}, false
	}
	return f.hash, true
}

// Mutable returns the ULID and true if this is a mutable identity.
func (f FileID) Mutable() (ulid.ULID, bool) {
	if f.kind != FileKindMutable {
		return ulid.ULID{}, false
	}
	return f.mutable, true
}

// String renders the hash as 64 lowercase hex characters, or the ULID
// in its own 26-character Crockford base32 form.
func (f FileID) String() string {
	switch f.kind {
	case FileKindHash:
		return hex.EncodeToString(f.hash[:])
	case FileKindMutable:
		return f.mutable.String()
	default:
		return ""
	}
}

// ValidateMatches re-hashes content and confirms it matches a hash
// identity. Mutable identities carry no content commitment, so calling
// this on one is a programmer error, not a content mismatch.
func (f FileID) ValidateMatches(content []byte) error {
	if f.kind == FileKindMutable {
		return brioerr.Wrap(brioerr.ErrInvariantViolation, "hashid: FileId %s is a mutable identity, has no content hash to validate", f)
	}
	got := blake3.New(Size, nil)
	got.Write(content)
	var sum [Size]byte
	copy(sum[:], got.Sum(nil))
	if sum != f.hash {
		return brioerr.Wrap(brioerr.ErrHashMismatch, "hashid: content does not match FileId %s (got %x)", f, sum)
	}
	return nil
}

// ParseFileID dispatches on string length: 64 hex characters parse as a
// hash identity, 26 characters parse as a mutable ULID identity.
func ParseFileID(s string) (FileID, error) {
	switch len(s) {
	case Size * 2:
		b, err := parseHex(s)
		if err != nil {
			return FileID{}, err
		}
		return NewFileIDHash(b), nil
	case 26:
		id, err := ulid.Parse(s)
		if err != nil {
			return FileID{}, fmt.Errorf("hashid: invalid mutable FileId: %w", err)
		}
		return NewFileIDMutable(id), nil
	default:
		return FileID{}, fmt.Errorf("hashid: invalid FileId length %d, want %d or 26", len(s), Size*2)
	}
}

func (f FileID) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FileID) UnmarshalText(text []byte) error {
	v, err := ParseFileID(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Package hashid defines the content identifiers used throughout the
// Brioche sync core: BLAKE3-derived hashes for blobs, recipes,
// artifacts and projects, plus the dual-identity FileId used by the
// VFS. All four hash kinds share the same wire form (64-char lowercase
// hex) so the registry's JSON bodies can treat them as plain strings.
package hashid

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes of every hash kind in this package.
const Size = 32

// BlobHash identifies a Blob by the BLAKE3 digest of its raw bytes.
type BlobHash [Size]byte

// RecipeHash identifies a Recipe by the BLAKE3 digest of its canonical
// serialized form.
type RecipeHash [Size]byte

// ArtifactHash identifies an Artifact by the BLAKE3 digest of its
// canonical form, which transitively includes every owned blob and
// child-artifact hash.
type ArtifactHash [Size]byte

// ProjectHash identifies a project definition by the BLAKE3 digest of
// its canonical form.
type ProjectHash [Size]byte

func sum(data []byte) [Size]byte {
	hasher := blake3.New(Size, nil)
	hasher.Write(data)
	var out [Size]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// SumBlob computes the BlobHash of raw bytes.
func SumBlob(data []byte) BlobHash {
	return BlobHash(sum(data))
}

// SumRecipe computes the RecipeHash of a recipe's canonical encoding.
func SumRecipe(canonical []byte) RecipeHash {
	return RecipeHash(sum(canonical))
}

// SumArtifact computes the ArtifactHash of an artifact's canonical encoding.
func SumArtifact(canonical []byte) ArtifactHash {
	return ArtifactHash(sum(canonical))
}

// SumProject computes the ProjectHash of a project's canonical encoding.
func SumProject(canonical []byte) ProjectHash {
	return ProjectHash(sum(canonical))
}

// NewBlobHasher returns a streaming BLAKE3 hasher for hash-while-write
// use in the blob store.
func NewBlobHasher() *blake3.Hasher {
	return blake3.New(Size, nil)
}

func (h BlobHash) String() string     { return hex.EncodeToString(h[:]) }
func (h RecipeHash) String() string   { return hex.EncodeToString(h[:]) }
func (h ArtifactHash) String() string { return hex.EncodeToString(h[:]) }
func (h ProjectHash) String() string  { return hex.EncodeToString(h[:]) }

func (h BlobHash) MarshalText() ([]byte, error)     { return []byte(h.String()), nil }
func (h RecipeHash) MarshalText() ([]byte, error)   { return []byte(h.String()), nil }
func (h ArtifactHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }
func (h ProjectHash) MarshalText() ([]byte, error)  { return []byte(h.String()), nil }

func (h *BlobHash) UnmarshalText(text []byte) error {
	v, err := ParseBlobHash(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h *RecipeHash) UnmarshalText(text []byte) error {
	v, err := ParseRecipeHash(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h *ArtifactHash) UnmarshalText(text []byte) error {
	v, err := ParseArtifactHash(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h *ProjectHash) UnmarshalText(text []byte) error {
	v, err := ParseProjectHash(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func parseHex(s string) ([Size]byte, error) {
	var out [Size]byte
	if len(s) != Size*2 {
		return out, fmt.Errorf("hashid: invalid hash length %d, want %d hex chars", len(s), Size*2)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("hashid: invalid hash %q: %w", s, err)
	}
	copy(out[:], b)
	return out, nil
}

// ParseBlobHash parses a 64-char lowercase hex string.
func ParseBlobHash(s string) (BlobHash, error) {
	b, err := parseHex(s)
	return BlobHash(b), err
}

// ParseRecipeHash parses a 64-char lowercase hex string.
func ParseRecipeHash(s string) (RecipeHash, error) {
	b, err := parseHex(s)
	return RecipeHash(b), err
}

// ParseArtifactHash parses a 64-char lowercase hex string.
func ParseArtifactHash(s string) (ArtifactHash, error) {
	b, err := parseHex(s)
	return ArtifactHash(b), err
}

// ParseProjectHash parses a 64-char lowercase hex string.
func ParseProjectHash(s string) (ProjectHash, error) {
	b, err := parseHex(s)
	return ProjectHash(b), err
}

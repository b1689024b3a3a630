// Package recipe defines the Recipe/Artifact/Bake data model: the
// tagged unions that describe how an output is produced and what it
// produced, plus their canonical byte encodings. A canonical encoding
// is only ever hashed, never parsed back in full generality — it exists
// to give every Recipe and Artifact a stable, deterministic RecipeHash
// or ArtifactHash.
package recipe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"brioche/hashid"
)

// Kind tags a Recipe's variant.
type Kind byte

const (
	KindDownload Kind = iota + 1
	KindUnpack
	KindProcess
	KindCreateFile
	KindCreateDirectory
	KindMerge
	KindSync
)

// Recipe is the tagged union describing how to produce an output
// artifact. Exactly one of the variant fields is meaningful, selected
// by Kind; the zero value of the others is ignored by Canonical.
type Recipe struct {
	Kind Kind `json:"kind"`

	// Download
	URL  string          `json:"url,omitempty"`
	Hash hashid.BlobHash `json:"hash,omitzero"`

	// Unpack
	Archive     hashid.RecipeHash `json:"archive,omitzero"`
	Compression string            `json:"compression,omitempty"`

	// Process
	Command        string              `json:"command,omitempty"`
	Args           []string            `json:"args,omitempty"`
	Env            map[string]string   `json:"env,omitempty"`
	Dependencies   []hashid.RecipeHash `json:"dependencies,omitempty"`
	OutputScaffold *Artifact           `json:"output_scaffold,omitempty"`

	// CreateFile
	Blob       hashid.BlobHash `json:"blob,omitzero"`
	Executable bool            `json:"executable,omitempty"`

	// CreateDirectory
	Entries map[string]hashid.RecipeHash `json:"entries,omitempty"`

	// Merge
	Directories []hashid.RecipeHash `json:"directories,omitempty"`

	// Sync
	Inner hashid.RecipeHash `json:"inner,omitzero"`
}

// ArtifactKind tags an Artifact's variant.
type ArtifactKind byte

const (
	ArtifactFile ArtifactKind = iota + 1
	ArtifactDirectory
	ArtifactSymlink
)

// Artifact is the canonical value an output produces once a Recipe has
// been baked: a file, a directory of named sub-artifacts, or a symlink.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`

	// File
	Blob       hashid.BlobHash `json:"blob,omitzero"`
	Executable bool            `json:"executable,omitempty"`

	// Directory
	Entries map[string]*Artifact `json:"entries,omitempty"`

	// Symlink
	Target string `json:"target,omitempty"`
}

// Bake records that baking an input recipe produced a given output
// artifact. It is the memoization edge in §3's data model, and carries
// the full Recipe and Artifact values rather than bare hashes: the
// output artifact must itself be traversed for embedded blobs (a
// directory's files, a process's output scaffold) before a create_bake
// call can safely assume every blob it implies already exists on the
// registry.
type Bake struct {
	InputRecipe    Recipe
	OutputArtifact Artifact
}

// Hash computes the RecipeHash of this recipe's canonical encoding.
func (r Recipe) Hash() (hashid.RecipeHash, error) {
	b, err := r.Canonical()
	if err != nil {
		return hashid.RecipeHash{}, err
	}
	return hashid.SumRecipe(b), nil
}

// Hash computes the ArtifactHash of this artifact's canonical encoding.
func (a Artifact) Hash() (hashid.ArtifactHash, error) {
	b, err := a.Canonical()
	if err != nil {
		return hashid.ArtifactHash{}, err
	}
	return hashid.SumArtifact(b), nil
}

// Canonical serializes a Recipe to a deterministic byte string: a
// one-byte tag followed by each variant's fields in a fixed order,
// with strings and byte slices length-prefixed so the encoding is
// unambiguous and self-delimiting.
func (r Recipe) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(r.Kind))

	switch r.Kind {
	case KindDownload:
		writeString(&buf, r.URL)
		writeBytes(&buf, r.Hash[:])

	case KindUnpack:
		writeBytes(&buf, r.Archive[:])
		writeString(&buf, r.Compression)

	case KindProcess:
		writeString(&buf, r.Command)
		writeUint32(&buf, uint32(len(r.Args)))
		for _, a := range r.Args {
			writeString(&buf, a)
		}
		writeEnv(&buf, r.Env)
		deps := append([]hashid.RecipeHash(nil), r.Dependencies...)
		sortRecipeHashes(deps)
		writeUint32(&buf, uint32(len(deps)))
		for _, d := range deps {
			writeBytes(&buf, d[:])
		}
		if r.OutputScaffold != nil {
			buf.WriteByte(1)
			sb, err := r.OutputScaffold.Canonical()
			if err != nil {
				return nil, err
			}
			writeBytes(&buf, sb)
		} else {
			buf.WriteByte(0)
		}

	case KindCreateFile:
		writeBytes(&buf, r.Blob[:])
		if r.Executable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}

	case KindCreateDirectory:
		names := sortedKeys(r.Entries)
		writeUint32(&buf, uint32(len(names)))
		for _, name := range names {
			writeString(&buf, name)
			h := r.Entries[name]
			writeBytes(&buf, h[:])
		}

	case KindMerge:
		dirs := append([]hashid.RecipeHash(nil), r.Directories...)
		writeUint32(&buf, uint32(len(dirs)))
		for _, d := range dirs {
			writeBytes(&buf, d[:])
		}

	case KindSync:
		writeBytes(&buf, r.Inner[:])

	default:
		return nil, fmt.Errorf("recipe: unknown kind %d", r.Kind)
	}

	return buf.Bytes(), nil
}

// Canonical serializes an Artifact the same way Canonical does for
// Recipe: a tag byte followed by fixed, length-prefixed fields.
func (a Artifact) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(a.Kind))

	switch a.Kind {
	case ArtifactFile:
		writeBytes(&buf, a.Blob[:])
		if a.Executable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}

	case ArtifactDirectory:
		names := make([]string, 0, len(a.Entries))
		for name := range a.Entries {
			names = append(names, name)
		}
		sort.Strings(names)
		writeUint32(&buf, uint32(len(names)))
		for _, name := range names {
			writeString(&buf, name)
			child := a.Entries[name]
			cb, err := child.Canonical()
			if err != nil {
				return nil, err
			}
			writeBytes(&buf, cb)
		}

	case ArtifactSymlink:
		writeString(&buf, a.Target)

	default:
		return nil, fmt.Errorf("recipe: unknown artifact kind %d", a.Kind)
	}

	return buf.Bytes(), nil
}

func writeUint32(buf *bytes.Buffer, n uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	buf.Write(tmp[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeEnv(buf *bytes.Buffer, env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
		writeString(buf, env[k])
	}
}

func sortedKeys(m map[string]hashid.RecipeHash) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortRecipeHashes(hs []hashid.RecipeHash) {
	sort.Slice(hs, func(i, j int) bool {
		return bytes.Compare(hs[i][:], hs[j][:]) < 0
	})
}

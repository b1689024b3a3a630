package recipe

import "brioche/hashid"

// References returns every RecipeHash this recipe directly points to
// (its children in the reference graph). closure.Closure calls this on
// each recipe it visits to discover the next BFS frontier; it does not
// recurse itself, since recursion is closure's job once it can fetch
// each child recipe from a store.
func (r Recipe) References() []hashid.RecipeHash {
	var refs []hashid.RecipeHash

	switch r.Kind {
	case KindUnpack:
		refs = append(refs, r.Archive)

	case KindProcess:
		refs = append(refs, r.Dependencies...)

	case KindCreateDirectory:
		for _, h := range r.Entries {
			refs = append(refs, h)
		}

	case KindMerge:
		refs = append(refs, r.Directories...)

	case KindSync:
		refs = append(refs, r.Inner)
	}

	return refs
}

// Blobs returns every BlobHash this recipe directly owns, including any
// embedded in an OutputScaffold: an artifact attached straight to a
// Process recipe rather than reached through another recipe, and so a
// blob it owns would otherwise never reach closure.Closure's walk.
func (r Recipe) Blobs() []hashid.BlobHash {
	switch r.Kind {
	case KindDownload:
		return []hashid.BlobHash{r.Hash}
	case KindCreateFile:
		return []hashid.BlobHash{r.Blob}
	case KindProcess:
		if r.OutputScaffold != nil {
			return r.OutputScaffold.Blobs()
		}
		return nil
	default:
		return nil
	}
}

// Blobs returns every BlobHash reachable from this artifact: its own
// blob if it's a file, every child's blobs recursively if it's a
// directory, or none if it's a symlink.
func (a Artifact) Blobs() []hashid.BlobHash {
	switch a.Kind {
	case ArtifactFile:
		return []hashid.BlobHash{a.Blob}
	case ArtifactDirectory:
		var blobs []hashid.BlobHash
		for _, child := range a.Entries {
			if child == nil {
				continue
			}
			blobs = append(blobs, child.Blobs()...)
		}
		return blobs
	default:
		return nil
	}
}

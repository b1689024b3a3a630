// Package syncengine implements the three synchronization operations
// (§4.F/G/H): sync_bakes, sync_recipe_references, and
// sync_project_references. Grounded directly on
// original_source/crates/brioche-core/src/sync/legacy_sync.rs for phase
// ordering and concurrency; wired onto registryclient, closure, blob,
// and fanout.
package syncengine

import (
	"context"
	"fmt"
	"io"
	"time"

	"brioche/blob"
	"brioche/closure"
	"brioche/fanout"
	"brioche/hashid"
	"brioche/localstore"
	"brioche/metrics"
	"brioche/recipe"
	"brioche/registryclient"
	"brioche/reporter"

	"go.uber.org/zap"
)

// Engine is the cloneable shared handle (§9) every sync call runs
// through: one registry client, one local store, one blob store, one
// reporter, and one metrics registry shared across concurrent sync
// calls from the same process. Engine is safe to copy; copies share the
// same underlying resources.
type Engine struct {
	Registry *registryclient.Client
	Local    *localstore.Store
	Blobs    *blob.Store
	Reporter *reporter.Reporter
	Metrics  *metrics.Registry
	Log      *zap.Logger
}

// New builds an Engine from its collaborators. Reporter, Metrics, and
// Log may be nil; a nil Reporter means progress events are dropped, a
// nil Metrics means no counters/gauges are recorded, and a nil Log
// means logging is a no-op.
func New(registry *registryclient.Client, local *localstore.Store, blobs *blob.Store, rep *reporter.Reporter, m *metrics.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Registry: registry, Local: local, Blobs: blobs, Reporter: rep, Metrics: m, Log: log}
}

func (e *Engine) emit(ev reporter.Event) {
	if e.Reporter != nil {
		e.Reporter.Emit(ev)
	}
}

// observeDuration records how long a full engine call took, labeled by
// which of the three sync operations (§4.F/G/H) ran.
func (e *Engine) observeDuration(engine string, start time.Time) {
	if e.Metrics != nil {
		e.Metrics.SyncDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) addKnownChecked(phase reporter.Phase, n int) {
	if e.Metrics != nil && n > 0 {
		e.Metrics.KnownChecked.WithLabelValues(string(phase)).Add(float64(n))
	}
}

func (e *Engine) incUploaded(phase reporter.Phase) {
	if e.Metrics != nil {
		e.Metrics.Uploaded.WithLabelValues(string(phase)).Inc()
	}
}

func (e *Engine) incSkipped(phase reporter.Phase) {
	if e.Metrics != nil {
		e.Metrics.Skipped.WithLabelValues(string(phase)).Inc()
	}
}

func (e *Engine) incFlight() {
	if e.Metrics != nil {
		e.Metrics.InFlightUploads.Inc()
	}
}

func (e *Engine) decFlight() {
	if e.Metrics != nil {
		e.Metrics.InFlightUploads.Dec()
	}
}

// BakeResult reports how many items of each kind a sync call touched,
// per the {blobs, recipes, bakes} result tuple spec.md's scenarios use.
type BakeResult struct {
	BlobsSent    int
	RecipesSent  int
	BakesCreated int
}

// bakeKey identifies a Bake by the hashes of its two values, since
// Recipe and Artifact hold maps and slices and so aren't themselves
// comparable.
type bakeKey struct {
	Input  hashid.RecipeHash
	Output hashid.ArtifactHash
}

// SyncBakes implements §4.F: given a set of (input recipe, output
// artifact) value pairs already known locally, ensures the registry has
// the reference closure of every input recipe and every output
// artifact, then the bake edges themselves.
//
// The seed set for the closure walk is the input recipe hashes. The
// output artifacts are not seeded by hash; each artifact value is
// walked directly instead, because its own tree (a directory's files,
// a process's output scaffold) can own blobs never reachable by
// walking the input recipe alone. Those blobs are folded into the same closure-blob sync as the
// recipe closure's own blobs, so every blob a bake's artifact implies
// is uploaded before create_bake can reference it.
//
// Order: recipe+artifact references sync first (blobs, then recipes),
// then bake edges, with bounded concurrency = 25 for both the bake-edge
// fan-out and (inside the shared closure sync) the blob fan-out.
func (e *Engine) SyncBakes(ctx context.Context, pairs []recipe.Bake) (BakeResult, error) {
	defer e.observeDuration("bakes", time.Now())

	seeds := make([]hashid.RecipeHash, 0, len(pairs))
	keys := make([]bakeKey, 0, len(pairs))
	wirePairs := make([]registryclient.BakePair, 0, len(pairs))
	artifactBlobs := make(map[hashid.BlobHash]struct{})

	for _, p := range pairs {
		ih, err := p.InputRecipe.Hash()
		if err != nil {
			return BakeResult{}, fmt.Errorf("syncengine: hash input recipe: %w", err)
		}
		oh, err := p.OutputArtifact.Hash()
		if err != nil {
			return BakeResult{}, fmt.Errorf("syncengine: hash output artifact: %w", err)
		}

		seeds = append(seeds, ih)
		keys = append(keys, bakeKey{Input: ih, Output: oh})
		wirePairs = append(wirePairs, registryclient.BakePair{Input: ih, Output: oh})
		for _, b := range p.OutputArtifact.Blobs() {
			artifactBlobs[b] = struct{}{}
		}
	}

	refResult, err := e.syncRecipeClosure(ctx, seeds, artifactBlobs)
	if err != nil {
		return BakeResult{}, fmt.Errorf("syncengine: sync recipe references: %w", err)
	}

	e.addKnownChecked(reporter.PhaseBake, len(wirePairs))
	known, err := e.Registry.KnownBakes(ctx, wirePairs)
	if err != nil {
		return BakeResult{}, fmt.Errorf("syncengine: known_bakes: %w", err)
	}
	knownSet := make(map[bakeKey]struct{}, len(known))
	for _, p := range known {
		knownSet[bakeKey{Input: p.Input, Output: p.Output}] = struct{}{}
	}

	var novel []bakeKey
	for _, k := range keys {
		if _, ok := knownSet[k]; !ok {
			novel = append(novel, k)
		} else {
			e.incSkipped(reporter.PhaseBake)
		}
	}

	err = fanout.BoundedEach(ctx, fanout.DefaultLimit, novel, func(ctx context.Context, k bakeKey) error {
		if err := e.Registry.CreateBake(ctx, k.Input, k.Output); err != nil {
			return fmt.Errorf("create_bake %s -> %s: %w", k.Input, k.Output, err)
		}
		e.incUploaded(reporter.PhaseBake)
		e.emit(reporter.Event{Phase: reporter.PhaseBake, Key: k.Input.String()})
		return nil
	})
	if err != nil {
		return BakeResult{}, err
	}

	return BakeResult{
		BlobsSent:    refResult.BlobsSent,
		RecipesSent:  refResult.RecipesSent,
		BakesCreated: len(novel),
	}, nil
}

// SyncRecipeReferences implements §4.G: computes the closure of seeds
// against the local store, then syncs every blob the closure owns
// before syncing the recipes themselves — an on-disk-blob-then-recipe
// order the invariant in spec.md §8 requires (every send_blob completes
// before create_recipes begins).
func (e *Engine) SyncRecipeReferences(ctx context.Context, seeds []hashid.RecipeHash) (BakeResult, error) {
	defer e.observeDuration("recipe_references", time.Now())
	return e.syncRecipeClosure(ctx, seeds, nil)
}

// syncRecipeClosure is the shared implementation behind
// SyncRecipeReferences and SyncBakes: it walks the recipe closure of
// seeds, adds any extraBlobs the caller already knows must also be
// present (e.g. a bake's output artifact tree), and syncs blobs before
// recipes.
func (e *Engine) syncRecipeClosure(ctx context.Context, seeds []hashid.RecipeHash, extraBlobs map[hashid.BlobHash]struct{}) (BakeResult, error) {
	refs, err := closure.Closure(ctx, e.Local, seeds)
	if err != nil {
		return BakeResult{}, fmt.Errorf("syncengine: closure: %w", err)
	}

	for b := range extraBlobs {
		refs.Blobs[b] = struct{}{}
	}

	blobsSent, err := e.syncBlobsFromStore(ctx, refs.Blobs)
	if err != nil {
		return BakeResult{}, err
	}

	recipesSent, err := e.syncRecipes(ctx, refs.Recipes)
	if err != nil {
		return BakeResult{}, err
	}

	return BakeResult{BlobsSent: blobsSent, RecipesSent: recipesSent}, nil
}

// syncBlobsFromStore diffs a blob set against known_blobs and uploads
// the novel ones by reading them off the local blob store.
func (e *Engine) syncBlobsFromStore(ctx context.Context, blobs map[hashid.BlobHash]struct{}) (int, error) {
	all := make([]hashid.BlobHash, 0, len(blobs))
	for h := range blobs {
		all = append(all, h)
	}

	novel, err := e.diffKnownBlobs(ctx, all)
	if err != nil {
		return 0, err
	}

	err = fanout.BoundedEach(ctx, fanout.DefaultLimit, novel, func(ctx context.Context, h hashid.BlobHash) error {
		e.incFlight()
		defer e.decFlight()

		r, err := e.Blobs.OpenReader(h)
		if err != nil {
			return fmt.Errorf("open blob %s: %w", h, err)
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read blob %s: %w", h, err)
		}
		if err := e.Registry.SendBlob(ctx, h, data); err != nil {
			return fmt.Errorf("send_blob %s: %w", h, err)
		}
		e.incUploaded(reporter.PhaseBlob)
		e.emit(reporter.Event{Phase: reporter.PhaseBlob, Key: h.String()})
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(novel), nil
}

// SyncLoadedBlobs implements the project engine's loaded-blob phase
// (§4.H): blobs that only exist in memory (e.g. VFS-mutable files not
// yet flushed to the blob store) are diffed and uploaded directly from
// their in-memory bytes, independent of the on-disk blob phase.
func (e *Engine) SyncLoadedBlobs(ctx context.Context, loaded map[hashid.BlobHash][]byte) (int, error) {
	all := make([]hashid.BlobHash, 0, len(loaded))
	for h := range loaded {
		all = append(all, h)
	}

	novel, err := e.diffKnownBlobs(ctx, all)
	if err != nil {
		return 0, err
	}

	err = fanout.BoundedEach(ctx, fanout.DefaultLimit, novel, func(ctx context.Context, h hashid.BlobHash) error {
		e.incFlight()
		defer e.decFlight()

		if err := e.Registry.SendBlob(ctx, h, loaded[h]); err != nil {
			return fmt.Errorf("send_blob %s: %w", h, err)
		}
		e.incUploaded(reporter.PhaseBlob)
		e.emit(reporter.Event{Phase: reporter.PhaseBlob, Key: h.String()})
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(novel), nil
}

func (e *Engine) diffKnownBlobs(ctx context.Context, all []hashid.BlobHash) ([]hashid.BlobHash, error) {
	e.addKnownChecked(reporter.PhaseBlob, len(all))
	known, err := e.Registry.KnownBlobs(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("known_blobs: %w", err)
	}
	knownSet := make(map[hashid.BlobHash]struct{}, len(known))
	for _, h := range known {
		knownSet[h] = struct{}{}
	}

	var novel []hashid.BlobHash
	for _, h := range all {
		if _, ok := knownSet[h]; !ok {
			novel = append(novel, h)
		} else {
			e.incSkipped(reporter.PhaseBlob)
			e.emit(reporter.Event{Phase: reporter.PhaseBlob, Key: h.String(), Skipped: true})
		}
	}
	return novel, nil
}

// syncRecipes diffs recipe hashes against known_recipes and uploads
// every novel recipe in a single batched create_recipes call, per
// §4.G's "collect novel Recipes; a single batched call" phase.
func (e *Engine) syncRecipes(ctx context.Context, recipes map[hashid.RecipeHash]recipe.Recipe) (int, error) {
	all := make([]hashid.RecipeHash, 0, len(recipes))
	for h := range recipes {
		all = append(all, h)
	}

	e.addKnownChecked(reporter.PhaseRecipe, len(all))
	known, err := e.Registry.KnownRecipes(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("known_recipes: %w", err)
	}
	knownSet := make(map[hashid.RecipeHash]struct{}, len(known))
	for _, h := range known {
		knownSet[h] = struct{}{}
	}

	var novel []recipe.Recipe
	for h, r := range recipes {
		if _, ok := knownSet[h]; !ok {
			novel = append(novel, r)
		} else {
			e.incSkipped(reporter.PhaseRecipe)
			e.emit(reporter.Event{Phase: reporter.PhaseRecipe, Key: h.String(), Skipped: true})
		}
	}

	if len(novel) == 0 {
		return 0, nil
	}

	if err := e.Registry.CreateRecipes(ctx, novel); err != nil {
		return 0, fmt.Errorf("create_recipes: %w", err)
	}
	for _, r := range novel {
		h, err := r.Hash()
		if err != nil {
			return 0, err
		}
		e.incUploaded(reporter.PhaseRecipe)
		e.emit(reporter.Event{Phase: reporter.PhaseRecipe, Key: h.String()})
	}

	return len(novel), nil
}

// SyncProjects implements the project phase of §4.H: diffs project
// hashes against known_projects and uploads the remainder with a
// single batched create_projects call.
func (e *Engine) SyncProjects(ctx context.Context, projects map[hashid.ProjectHash][]byte) (int, error) {
	all := make([]hashid.ProjectHash, 0, len(projects))
	for h := range projects {
		all = append(all, h)
	}

	e.addKnownChecked(reporter.PhaseProject, len(all))
	known, err := e.Registry.KnownProjects(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("known_projects: %w", err)
	}
	knownSet := make(map[hashid.ProjectHash]struct{}, len(known))
	for _, h := range known {
		knownSet[h] = struct{}{}
	}

	novel := make(map[hashid.ProjectHash][]byte)
	for h, b := range projects {
		if _, ok := knownSet[h]; !ok {
			novel[h] = b
		} else {
			e.incSkipped(reporter.PhaseProject)
			e.emit(reporter.Event{Phase: reporter.PhaseProject, Key: h.String(), Skipped: true})
		}
	}

	if len(novel) == 0 {
		return 0, nil
	}

	if err := e.Registry.CreateProjects(ctx, novel); err != nil {
		return 0, fmt.Errorf("create_projects: %w", err)
	}
	for h := range novel {
		e.incUploaded(reporter.PhaseProject)
		e.emit(reporter.Event{Phase: reporter.PhaseProject, Key: h.String()})
	}

	return len(novel), nil
}

// SyncProjectReferences implements §4.H in full: recipe references for
// every project's root recipes, the loaded-blobs phase, and finally the
// project phase itself.
func (e *Engine) SyncProjectReferences(ctx context.Context, rootRecipes []hashid.RecipeHash, loadedBlobs map[hashid.BlobHash][]byte, projects map[hashid.ProjectHash][]byte) (BakeResult, error) {
	defer e.observeDuration("project_references", time.Now())

	refResult, err := e.SyncRecipeReferences(ctx, rootRecipes)
	if err != nil {
		return BakeResult{}, err
	}

	loadedSent, err := e.SyncLoadedBlobs(ctx, loadedBlobs)
	if err != nil {
		return BakeResult{}, err
	}

	if _, err := e.SyncProjects(ctx, projects); err != nil {
		return BakeResult{}, err
	}

	refResult.BlobsSent += loadedSent
	return refResult, nil
}

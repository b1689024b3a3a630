// Package reporter is a non-blocking progress sink for the sync
// engines (§9's design note on progress reporting). Grounded on the
// teacher's datastore.Iterator: an out-channel plus a ctx.Done() select
// loop, repurposed here as a send-only event bus instead of a query
// result stream.
package reporter

import "context"

// Phase names the sync phase an Event describes.
type Phase string

const (
	PhaseBlob    Phase = "blob"
	PhaseRecipe  Phase = "recipe"
	PhaseBake    Phase = "bake"
	PhaseProject Phase = "project"
)

// Event is one unit of sync progress: an item of a given kind either
// was already known to the registry (Skipped) or was just uploaded.
type Event struct {
	Phase   Phase
	Key     string
	Skipped bool
}

// Reporter receives Events without blocking the sync engine that emits
// them; a full buffer drops events rather than stalling the caller,
// since progress reporting must never slow down or deadlock a sync.
type Reporter struct {
	events chan Event
}

// New returns a Reporter with the given buffer size. A size of 0 means
// every Emit is dropped unless a receiver is actively reading Events().
func New(buffer int) *Reporter {
	return &Reporter{events: make(chan Event, buffer)}
}

// Emit sends an event, dropping it silently if the buffer is full.
func (r *Reporter) Emit(e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// Events returns the channel of progress events for a consumer to
// range over.
func (r *Reporter) Events() <-chan Event {
	return r.events
}

// Close closes the event channel. Callers must stop calling Emit
// before calling Close.
func (r *Reporter) Close() {
	close(r.events)
}

// Drain consumes and discards every event until ctx is cancelled or the
// channel is closed; useful in tests and callers that don't care about
// progress but still want the channel kept empty.
func Drain(ctx context.Context, r *Reporter) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-r.events:
			if !ok {
				return
			}
		}
	}
}

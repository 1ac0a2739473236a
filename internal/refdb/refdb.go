// Package refdb provides the live Git reference database interface and an
// in-memory shadow overlay ("memdb") that the fetch state machine stages
// candidate updates into before an atomic apply.
package refdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// Ancestry is the relationship between a candidate oid and the oid
// currently held for the same ref.
type Ancestry int

const (
	Equal Ancestry = iota
	Ahead
	Behind
	Diverged
)

func (a Ancestry) String() string {
	switch a {
	case Equal:
		return "equal"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	case Diverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// AncestryOracle answers ancestry questions about two object ids of the
// same lineage (e.g. two tips of a peer's refs/rad/sigrefs history). The
// real implementation walks Git commit parents; it is supplied by the
// external Git plumbing layer (the worker pool that runs
// Git's native pack protocol is out of scope here).
type AncestryOracle interface {
	// Compare returns how candidate relates to current: Ahead when
	// current is an ancestor of candidate, Behind when candidate is an
	// ancestor of current, Equal when they are the same oid, Diverged
	// otherwise.
	Compare(ctx context.Context, current, candidate ids.Oid) (Ancestry, error)
}

// LiveStore is the real, on-disk Git reference database that the apply
// step of the fetch state machine mutates. It is never written to except
// through Apply.
type LiveStore interface {
	AncestryOracle

	// Ref reads the current oid for ref, or ok=false if it does not
	// exist.
	Ref(ctx context.Context, ref ids.RefName) (oid ids.Oid, ok bool, err error)

	// Apply atomically moves every update into the live store. Either
	// all updates land or none do.
	Apply(ctx context.Context, updates map[ids.RefName]ids.Oid) error
}

// Overlay is the in-memory reference database the fetch state machine
// stages proposed updates into. Reads fall through to the underlying
// LiveStore; writes only ever touch the overlay until Commit is called.
type Overlay struct {
	live LiveStore

	mu      sync.RWMutex
	staged  map[ids.RefName]ids.Oid
	deleted map[ids.RefName]struct{}
}

func NewOverlay(live LiveStore) *Overlay {
	return &Overlay{
		live:    live,
		staged:  make(map[ids.RefName]ids.Oid),
		deleted: make(map[ids.RefName]struct{}),
	}
}

// Ref reads a ref: staged value if present, live value otherwise.
func (o *Overlay) Ref(ctx context.Context, ref ids.RefName) (ids.Oid, bool, error) {
	o.mu.RLock()
	if oid, ok := o.staged[ref]; ok {
		o.mu.RUnlock()
		return oid, true, nil
	}
	if _, gone := o.deleted[ref]; gone {
		o.mu.RUnlock()
		return ids.Oid{}, false, nil
	}
	o.mu.RUnlock()
	return o.live.Ref(ctx, ref)
}

// Stage records a proposed update; it is not visible to the live store
// until Commit.
func (o *Overlay) Stage(ref ids.RefName, oid ids.Oid) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staged[ref] = oid
	delete(o.deleted, ref)
}

// Drop discards a previously staged update for ref (used when a remote
// is pruned during validation).
func (o *Overlay) Drop(ref ids.RefName) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.staged, ref)
}

// DropPrefix discards every staged update whose ref has the given
// namespace prefix (used to prune an entire remote's proposed refs).
func (o *Overlay) DropPrefix(prefix string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ref := range o.staged {
		if hasPrefix(string(ref), prefix) {
			delete(o.staged, ref)
		}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Staged returns a snapshot copy of every currently staged update.
func (o *Overlay) Staged() map[ids.RefName]ids.Oid {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[ids.RefName]ids.Oid, len(o.staged))
	for k, v := range o.staged {
		out[k] = v
	}
	return out
}

// StagedUnder returns staged refs restricted to a namespace prefix.
func (o *Overlay) StagedUnder(prefix string) map[ids.RefName]ids.Oid {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[ids.RefName]ids.Oid)
	for k, v := range o.staged {
		if hasPrefix(string(k), prefix) {
			out[k] = v
		}
	}
	return out
}

// Compare delegates ancestry questions to the underlying live store's
// oracle; the overlay itself holds no history, only tips.
func (o *Overlay) Compare(ctx context.Context, current, candidate ids.Oid) (Ancestry, error) {
	return o.live.Compare(ctx, current, candidate)
}

// Commit atomically applies every staged update to the live store and
// clears the overlay. Returns the set of refs that actually changed
// value. Applying the same staged content twice in a row yields an
// empty changed set on the second call, since Apply just overwrites.
func (o *Overlay) Commit(ctx context.Context) (map[ids.RefName]ids.Oid, error) {
	o.mu.Lock()
	staged := make(map[ids.RefName]ids.Oid, len(o.staged))
	for k, v := range o.staged {
		staged[k] = v
	}
	o.mu.Unlock()

	if len(staged) == 0 {
		return map[ids.RefName]ids.Oid{}, nil
	}

	changed := make(map[ids.RefName]ids.Oid, len(staged))
	for ref, oid := range staged {
		cur, ok, err := o.live.Ref(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("refdb: read %s before apply: %w", ref, err)
		}
		if !ok || !cur.Equal(oid) {
			changed[ref] = oid
		}
	}

	if err := o.live.Apply(ctx, staged); err != nil {
		return nil, fmt.Errorf("refdb: apply: %w", err)
	}

	o.mu.Lock()
	o.staged = make(map[ids.RefName]ids.Oid)
	o.mu.Unlock()

	return changed, nil
}

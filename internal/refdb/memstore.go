package refdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// MemStore is a minimal in-process LiveStore, used by tests and by
// embedders that don't need a real on-disk Git repository (e.g. the
// fetch package's unit tests). Ancestry is derived from an explicit
// parent map the test registers via SetParent, standing in for walking
// real commit history.
type MemStore struct {
	mu      sync.RWMutex
	refs    map[ids.RefName]ids.Oid
	parents map[string][]string // oid hex -> parent oid hexes
}

func NewMemStore() *MemStore {
	return &MemStore{
		refs:    make(map[ids.RefName]ids.Oid),
		parents: make(map[string][]string),
	}
}

// SetParent records that child has parent as a direct ancestor; used to
// build a synthetic commit graph for ancestry comparisons.
func (m *MemStore) SetParent(child, parent ids.Oid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parents[child.String()] = append(m.parents[child.String()], parent.String())
}

func (m *MemStore) Ref(_ context.Context, ref ids.RefName) (ids.Oid, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	oid, ok := m.refs[ref]
	return oid, ok, nil
}

func (m *MemStore) Apply(_ context.Context, updates map[ids.RefName]ids.Oid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, oid := range updates {
		m.refs[ref] = oid
	}
	return nil
}

func (m *MemStore) isAncestor(x, y string, seen map[string]bool) bool {
	if x == y {
		return true
	}
	if seen[y] {
		return false
	}
	seen[y] = true
	for _, p := range m.parents[y] {
		if m.isAncestor(x, p, seen) {
			return true
		}
	}
	return false
}

func (m *MemStore) Compare(_ context.Context, current, candidate ids.Oid) (Ancestry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if current.IsZero() {
		return Ahead, nil
	}
	if current.Equal(candidate) {
		return Equal, nil
	}
	c, cur := candidate.String(), current.String()
	candidateHasCur := m.isAncestor(cur, c, map[string]bool{})
	curHasCandidate := m.isAncestor(c, cur, map[string]bool{})
	switch {
	case candidateHasCur && !curHasCandidate:
		return Ahead, nil
	case curHasCandidate && !candidateHasCur:
		return Behind, nil
	case candidateHasCur && curHasCandidate:
		return Equal, nil
	default:
		return Diverged, nil
	}
}

var _ LiveStore = (*MemStore)(nil)

// Fork is a convenience for tests: it returns a fresh child oid recorded
// as a descendant of parent, without a real content hash behind it.
func Fork(store *MemStore, parent ids.Oid, seed byte) ids.Oid {
	b := make([]byte, 20)
	copy(b, parent.Bytes())
	b[0] ^= seed
	oid, err := ids.NewOid(b)
	if err != nil {
		panic(fmt.Sprintf("refdb: Fork: %v", err))
	}
	store.SetParent(oid, parent)
	return oid
}

// Package routing implements the in-memory repository-to-seeds routing
// table and the persisted node address book.
package routing

import (
	"sync"
	"time"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// entry is one (repo, node) routing fact.
type entry struct {
	node     ids.NodeId
	lastSeen time.Time
}

// Table maps RepoId -> set<NodeId> with per-entry last-seen timestamps,
// bounded by a configured max size and max age.
type Table struct {
	mu      sync.Mutex
	byRepo  map[string]map[string]*entry // repo string -> node string -> entry
	repoIDs map[string]ids.RepoId
	maxSize int
	maxAge  time.Duration
	size    int
}

func NewTable(maxSize int, maxAge time.Duration) *Table {
	return &Table{
		byRepo:  make(map[string]map[string]*entry),
		repoIDs: make(map[string]ids.RepoId),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Insert records that node hosts repo as of ts. Returns created=true if
// this is a brand new (repo, node) fact (used by the gossip service to
// decide whether to emit a RoutingUpdate event).
func (t *Table) Insert(repo ids.RepoId, node ids.NodeId, ts time.Time) (created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	repoKey := string(repo.Bytes())
	nodes, ok := t.byRepo[repoKey]
	if !ok {
		nodes = make(map[string]*entry)
		t.byRepo[repoKey] = nodes
		t.repoIDs[repoKey] = repo
	}

	nodeKey := string(node.Bytes())
	if e, exists := nodes[nodeKey]; exists {
		if ts.After(e.lastSeen) {
			e.lastSeen = ts
		}
		return false
	}

	nodes[nodeKey] = &entry{node: node, lastSeen: ts}
	t.size++
	t.evictIfOverCap()
	return true
}

// Seeds returns every node currently routed for repo.
func (t *Table) Seeds(repo ids.RepoId) []ids.NodeId {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes, ok := t.byRepo[string(repo.Bytes())]
	if !ok {
		return nil
	}
	out := make([]ids.NodeId, 0, len(nodes))
	for _, e := range nodes {
		out = append(out, e.node)
	}
	return out
}

// Len returns the total number of (repo, node) facts in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Prune evicts entries older than maxAge unconditionally, then — if the
// table is still over maxSize — drops the oldest remaining entries until
// it is not. Returns the number of entries removed.
func (t *Table) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	if t.maxAge > 0 {
		cutoff := now.Add(-t.maxAge)
		for repoKey, nodes := range t.byRepo {
			for nodeKey, e := range nodes {
				if e.lastSeen.Before(cutoff) {
					delete(nodes, nodeKey)
					t.size--
					removed++
				}
			}
			if len(nodes) == 0 {
				delete(t.byRepo, repoKey)
				delete(t.repoIDs, repoKey)
			}
		}
	}

	removed += t.evictOldestUntilUnderCapLocked()
	return removed
}

// evictIfOverCap drops the single oldest entry if the table just grew
// past maxSize (called after each Insert so the table never exceeds the
// cap by more than the single just-inserted entry).
func (t *Table) evictIfOverCap() {
	if t.maxSize <= 0 || t.size <= t.maxSize {
		return
	}
	t.evictOldestLocked()
}

func (t *Table) evictOldestUntilUnderCapLocked() int {
	removed := 0
	for t.maxSize > 0 && t.size > t.maxSize {
		if !t.evictOldestLocked() {
			break
		}
		removed++
	}
	return removed
}

// evictOldestLocked removes the single globally-oldest entry. Caller
// holds t.mu.
func (t *Table) evictOldestLocked() bool {
	var oldestRepo, oldestNode string
	var oldestTime time.Time
	found := false

	for repoKey, nodes := range t.byRepo {
		for nodeKey, e := range nodes {
			if !found || e.lastSeen.Before(oldestTime) {
				oldestRepo, oldestNode, oldestTime, found = repoKey, nodeKey, e.lastSeen, true
			}
		}
	}
	if !found {
		return false
	}

	delete(t.byRepo[oldestRepo], oldestNode)
	t.size--
	if len(t.byRepo[oldestRepo]) == 0 {
		delete(t.byRepo, oldestRepo)
		delete(t.repoIDs, oldestRepo)
	}
	return true
}

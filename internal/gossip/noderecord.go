package gossip

import (
	"sync"
	"time"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// nodeRecord is kept per remote NodeId across sessions to suppress
// duplicate/stale announcements.
type nodeRecord struct {
	lastRefs      map[string]time.Time // repo bytes -> timestamp
	lastInventory time.Time
	lastNode      time.Time
}

func newNodeRecord() *nodeRecord {
	return &nodeRecord{lastRefs: make(map[string]time.Time)}
}

// nodeRecords is the reactor-owned table of per-node bookkeeping.
type nodeRecords struct {
	mu      sync.Mutex
	records map[string]*nodeRecord // node bytes -> record
}

func newNodeRecords() *nodeRecords {
	return &nodeRecords{records: make(map[string]*nodeRecord)}
}

func (n *nodeRecords) get(node ids.NodeId) *nodeRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := string(node.Bytes())
	r, ok := n.records[key]
	if !ok {
		r = newNodeRecord()
		n.records[key] = r
	}
	return r
}

// admitInventory reports whether ts is strictly newer than the stored
// last_inventory for node, and if so, advances it.
func (n *nodeRecords) admitInventory(node ids.NodeId, ts time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.unsafeGet(node)
	if !ts.After(r.lastInventory) {
		return false
	}
	r.lastInventory = ts
	return true
}

func (n *nodeRecords) admitRefs(node ids.NodeId, repo ids.RepoId, ts time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.unsafeGet(node)
	key := string(repo.Bytes())
	if prev, ok := r.lastRefs[key]; ok && !ts.After(prev) {
		return false
	}
	r.lastRefs[key] = ts
	return true
}

func (n *nodeRecords) admitNode(node ids.NodeId, ts time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.unsafeGet(node)
	if !ts.After(r.lastNode) {
		return false
	}
	r.lastNode = ts
	return true
}

// unsafeGet assumes n.mu is already held.
func (n *nodeRecords) unsafeGet(node ids.NodeId) *nodeRecord {
	key := string(node.Bytes())
	r, ok := n.records[key]
	if !ok {
		r = newNodeRecord()
		n.records[key] = r
	}
	return r
}

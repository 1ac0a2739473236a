package routing

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/store"
)

// AddressBookEntry is discoverable node metadata carried by a Node
// announcement and persisted across restarts.
type AddressBookEntry struct {
	Node      ids.NodeId
	Addresses []ma.Multiaddr
	Features  *bitset.BitSet
	Alias     string
	LastSeen  time.Time
	UserAgent string
}

// persistedEntry is the JSON-on-disk shape; AddressBookEntry's fields
// don't marshal directly (NodeId and Multiaddr need explicit byte/string
// forms, bitset needs its own codec).
type persistedEntry struct {
	Node      []byte   `json:"node"`
	Addresses []string `json:"addresses"`
	Features  []byte   `json:"features"`
	Alias     string   `json:"alias"`
	LastSeen  time.Time `json:"last_seen"`
	UserAgent string   `json:"user_agent,omitempty"`
}

// AddressBook is the persisted NodeId -> metadata store ("An address
// book ... must survive restart").
type AddressBook struct {
	mu      sync.RWMutex
	file    *store.JSONFile
	entries map[string]*AddressBookEntry
}

// NewAddressBook loads any existing address book at path (a missing file
// starts empty).
func NewAddressBook(path string) (*AddressBook, error) {
	ab := &AddressBook{
		file:    store.NewJSONFile(path),
		entries: make(map[string]*AddressBookEntry),
	}
	var persisted []persistedEntry
	if err := ab.file.Load(&persisted); err != nil {
		return nil, err
	}
	for _, p := range persisted {
		e, err := fromPersisted(p)
		if err != nil {
			continue // skip corrupt entries rather than fail the whole load
		}
		ab.entries[string(e.Node.Bytes())] = e
	}
	return ab, nil
}

func fromPersisted(p persistedEntry) (*AddressBookEntry, error) {
	nid, err := ids.ParseNodeId(p.Node)
	if err != nil {
		return nil, err
	}
	addrs := make([]ma.Multiaddr, 0, len(p.Addresses))
	for _, s := range p.Addresses {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			continue
		}
		addrs = append(addrs, a)
	}
	features := bitset.New(0)
	if len(p.Features) > 0 {
		_ = features.UnmarshalBinary(p.Features)
	}
	return &AddressBookEntry{
		Node:      nid,
		Addresses: addrs,
		Features:  features,
		Alias:     p.Alias,
		LastSeen:  p.LastSeen,
		UserAgent: p.UserAgent,
	}, nil
}

func (e *AddressBookEntry) toPersisted() persistedEntry {
	addrs := make([]string, len(e.Addresses))
	for i, a := range e.Addresses {
		addrs[i] = a.String()
	}
	var features []byte
	if e.Features != nil {
		features, _ = e.Features.MarshalBinary()
	}
	return persistedEntry{
		Node:      e.Node.Bytes(),
		Addresses: addrs,
		Features:  features,
		Alias:     e.Alias,
		LastSeen:  e.LastSeen,
		UserAgent: e.UserAgent,
	}
}

// Upsert inserts or updates an entry. Returns changed=true if anything
// about the stored entry actually differs from what was there before —
// the gossip service only relays Node announcements when this is true.
func (ab *AddressBook) Upsert(e AddressBookEntry) (changed bool) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	key := string(e.Node.Bytes())
	prev, existed := ab.entries[key]
	if existed && sameEntry(prev, &e) {
		prev.LastSeen = e.LastSeen
		return false
	}
	cp := e
	ab.entries[key] = &cp
	return true
}

func sameEntry(a, b *AddressBookEntry) bool {
	if a.Alias != b.Alias || a.UserAgent != b.UserAgent {
		return false
	}
	if len(a.Addresses) != len(b.Addresses) {
		return false
	}
	for i := range a.Addresses {
		if !a.Addresses[i].Equal(b.Addresses[i]) {
			return false
		}
	}
	if (a.Features == nil) != (b.Features == nil) {
		return false
	}
	if a.Features != nil && !a.Features.Equal(b.Features) {
		return false
	}
	return true
}

// Get returns the stored entry for nid, if any.
func (ab *AddressBook) Get(nid ids.NodeId) (AddressBookEntry, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	e, ok := ab.entries[string(nid.Bytes())]
	if !ok {
		return AddressBookEntry{}, false
	}
	return *e, true
}

// Entries returns a snapshot of every stored entry, in no particular
// order. Used by the gossip reactor's idle task to pick outbound
// dial candidates when it's short of its target peer count.
func (ab *AddressBook) Entries() []AddressBookEntry {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	out := make([]AddressBookEntry, 0, len(ab.entries))
	for _, e := range ab.entries {
		out = append(out, *e)
	}
	return out
}

// Persist flushes the whole book to disk.
func (ab *AddressBook) Persist() error {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	out := make([]persistedEntry, 0, len(ab.entries))
	for _, e := range ab.entries {
		out = append(out, e.toPersisted())
	}
	return ab.file.Save(out)
}

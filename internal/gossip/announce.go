package gossip

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bits-and-blooms/bitset"
	"github.com/fxamacker/cbor/v2"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/zeebo/blake3"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// MaxAliasLen is the maximum UTF-8 byte length of a Node announcement's
// alias.
const MaxAliasLen = 255

// MaxInventoryRepos is the repo-list bound that ErrTooManyRepos names.
// Nothing in this package checks an Inventory announcement against it.
const MaxInventoryRepos = 1 << 16

// PowDifficultyBits is the fixed proof-of-work difficulty for Node
// announcements: the BLAKE3 digest of the canonical message (with Nonce
// filled in) must have at least this many leading zero bits. Fixed per
// deliberately fixed rather than configurable per node or network.
const PowDifficultyBits = 16

// AnnouncementMessage is a closed sum type: Inventory, Refs, or Node.
type AnnouncementMessage interface {
	isAnnouncementMessage()
	kind() string
	timestamp() time.Time
}

// Inventory is the full (not delta) list of repos the signer hosts.
type Inventory struct {
	Repos     []ids.RepoId
	Timestamp time.Time
}

func (Inventory) isAnnouncementMessage() {}
func (Inventory) kind() string           { return "inventory" }
func (i Inventory) timestamp() time.Time { return i.Timestamp }

// Refs announces that the signer has new refs for Repo.
type Refs struct {
	Repo      ids.RepoId
	Manifest  *sigrefs.Manifest
	Timestamp time.Time
}

func (Refs) isAnnouncementMessage() {}
func (Refs) kind() string           { return "refs" }
func (r Refs) timestamp() time.Time { return r.Timestamp }

// Node is discoverable node metadata, with a required proof-of-work.
type Node struct {
	Features  *bitset.BitSet
	Alias     string
	Addresses []ma.Multiaddr
	Nonce     uint64
	Timestamp time.Time
}

func (Node) isAnnouncementMessage() {}
func (Node) kind() string           { return "node" }
func (n Node) timestamp() time.Time { return n.Timestamp }

// Announcement is the signed envelope gossiped between peers.
type Announcement struct {
	Signer    ids.NodeId
	Message   AnnouncementMessage
	Signature []byte
}

// --- canonical encoding -----------------------------------------------

type rawInventory struct {
	Repos     [][]byte `cbor:"repos"`
	Timestamp int64    `cbor:"timestamp"`
}

type rawRefs struct {
	Repo      []byte `cbor:"repo"`
	Signer    []byte `cbor:"signer"`
	Refs      map[string][]byte `cbor:"refs"`
	Signature []byte `cbor:"signature"`
	Timestamp int64  `cbor:"timestamp"`
}

type rawNode struct {
	Features  []byte   `cbor:"features"`
	Alias     string   `cbor:"alias"`
	Addresses []string `cbor:"addresses"`
	Nonce     uint64   `cbor:"nonce"`
	Timestamp int64    `cbor:"timestamp"`
}

type rawMessage struct {
	Kind      string        `cbor:"kind"`
	Inventory *rawInventory `cbor:"inventory,omitempty"`
	Refs      *rawRefs      `cbor:"refs,omitempty"`
	Node      *rawNode      `cbor:"node,omitempty"`
}

var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// canonicalMessageBytes is the deterministic byte string signatures (and
// the Node proof-of-work) are computed over.
func canonicalMessageBytes(msg AnnouncementMessage) ([]byte, error) {
	raw, err := toRawMessage(msg)
	if err != nil {
		return nil, err
	}
	return canonicalEncMode.Marshal(raw)
}

func toRawMessage(msg AnnouncementMessage) (rawMessage, error) {
	switch m := msg.(type) {
	case Inventory:
		repos := make([][]byte, len(m.Repos))
		for i, r := range m.Repos {
			repos[i] = r.Bytes()
		}
		return rawMessage{Kind: "inventory", Inventory: &rawInventory{
			Repos: repos, Timestamp: m.Timestamp.Unix(),
		}}, nil
	case Refs:
		refs := make(map[string][]byte, len(m.Manifest.Refs))
		for ref, oid := range m.Manifest.Refs {
			refs[string(ref)] = oid.Bytes()
		}
		return rawMessage{Kind: "refs", Refs: &rawRefs{
			Repo:      m.Repo.Bytes(),
			Signer:    m.Manifest.Signer.Bytes(),
			Refs:      refs,
			Signature: m.Manifest.Signature,
			Timestamp: m.Timestamp.Unix(),
		}}, nil
	case Node:
		addrs := make([]string, len(m.Addresses))
		for i, a := range m.Addresses {
			addrs[i] = a.String()
		}
		var features []byte
		if m.Features != nil {
			features, _ = m.Features.MarshalBinary()
		}
		return rawMessage{Kind: "node", Node: &rawNode{
			Features: features, Alias: m.Alias, Addresses: addrs,
			Nonce: m.Nonce, Timestamp: m.Timestamp.Unix(),
		}}, nil
	default:
		return rawMessage{}, fmt.Errorf("gossip: unknown announcement kind %T", msg)
	}
}

// Sign produces a signed Announcement envelope.
func Sign(signer sigrefs.Signer, msg AnnouncementMessage) (*Announcement, error) {
	canon, err := canonicalMessageBytes(msg)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(canon)
	if err != nil {
		return nil, fmt.Errorf("gossip: sign: %w", err)
	}
	return &Announcement{Signer: signer.NodeId(), Message: msg, Signature: sig}, nil
}

// Verify checks the envelope's signature against its declared signer.
func (a *Announcement) Verify() error {
	canon, err := canonicalMessageBytes(a.Message)
	if err != nil {
		return err
	}
	ok, err := a.Signer.Verify(canon, a.Signature)
	if err != nil {
		return fmt.Errorf("gossip: verify: %w", err)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// VerifyNodeProofOfWork checks the fixed-difficulty hash-preimage over
// n's canonical bytes (with Nonce as submitted).
func VerifyNodeProofOfWork(n Node) error {
	if utf8.RuneCountInString(n.Alias) == 0 && len(n.Alias) > 0 {
		return ErrBadAlias
	}
	if !utf8.ValidString(n.Alias) || len(n.Alias) > MaxAliasLen {
		return ErrBadAlias
	}
	canon, err := canonicalMessageBytes(n)
	if err != nil {
		return err
	}
	sum := blake3.Sum256(canon)
	if leadingZeroBits(sum[:]) < PowDifficultyBits {
		return ErrInsufficientProofOfWork
	}
	return nil
}

func leadingZeroBits(b []byte) int {
	count := 0
	for _, by := range b {
		if by == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if by&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// Package ids defines the identifiers shared across the replication
// subsystem: node public keys, repository ids, Git object ids, and
// reference names.
package ids

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

var (
	ErrInvalidNodeId = errors.New("ids: invalid node id")
	ErrInvalidRepoId = errors.New("ids: invalid repo id")
	ErrInvalidOid    = errors.New("ids: invalid oid")
	ErrInvalidRef    = errors.New("ids: invalid ref name")
)

// NodeId is the public key of a peer; it also serves as a namespace
// identifier under refs/namespaces/<nid>/...
type NodeId struct {
	key crypto.PubKey
	raw []byte // cached marshaled bytes, used for Compare/Equal/String
}

// NewNodeId wraps an already-parsed Ed25519-class public key.
func NewNodeId(key crypto.PubKey) (NodeId, error) {
	if key == nil {
		return NodeId{}, fmt.Errorf("%w: nil key", ErrInvalidNodeId)
	}
	raw, err := crypto.MarshalPublicKey(key)
	if err != nil {
		return NodeId{}, fmt.Errorf("%w: %v", ErrInvalidNodeId, err)
	}
	return NodeId{key: key, raw: raw}, nil
}

// ParseNodeId decodes a marshaled libp2p public key (the wire form used in
// Initialize and Announcement envelopes).
func ParseNodeId(b []byte) (NodeId, error) {
	key, err := crypto.UnmarshalPublicKey(b)
	if err != nil {
		return NodeId{}, fmt.Errorf("%w: %v", ErrInvalidNodeId, err)
	}
	return NewNodeId(key)
}

func (n NodeId) PublicKey() crypto.PubKey { return n.key }

func (n NodeId) Bytes() []byte {
	out := make([]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

func (n NodeId) IsZero() bool { return n.key == nil }

func (n NodeId) Equal(o NodeId) bool {
	return bytes.Equal(n.raw, o.raw)
}

// Compare provides the deterministic ordering used to resolve conflicting
// simultaneous connections: the greater NodeId's outbound session
// survives.
func (n NodeId) Compare(o NodeId) int {
	return bytes.Compare(n.raw, o.raw)
}

func (n NodeId) String() string {
	if n.key == nil {
		return "<nil-node>"
	}
	return "z" + hex.EncodeToString(n.raw)
}

func (n NodeId) Verify(data, sig []byte) (bool, error) {
	if n.key == nil {
		return false, fmt.Errorf("%w: empty key", ErrInvalidNodeId)
	}
	return n.key.Verify(data, sig)
}

// RepoId is an opaque content-addressed repository identifier, modeled as
// a CIDv1 over a blake3-256 multihash of the repository's root (the
// initial commit, or any other stable seed the caller supplies).
type RepoId struct {
	c cid.Cid
}

// RepoCodec is an arbitrary "raw" multicodec used for repository root
// hashes; the codec value itself has no semantic meaning beyond
// distinguishing RepoId CIDs from other CIDs.
const RepoCodec = 0x55 // raw

func NewRepoId(root []byte) (RepoId, error) {
	sum := blake3.Sum256(root)
	mh, err := multihash.Encode(sum[:], multihash.BLAKE3)
	if err != nil {
		return RepoId{}, fmt.Errorf("%w: %v", ErrInvalidRepoId, err)
	}
	return RepoId{c: cid.NewCidV1(RepoCodec, mh)}, nil
}

func ParseRepoId(s string) (RepoId, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return RepoId{}, fmt.Errorf("%w: %v", ErrInvalidRepoId, err)
	}
	return RepoId{c: c}, nil
}

func (r RepoId) IsZero() bool { return !r.c.Defined() }
func (r RepoId) String() string {
	if !r.c.Defined() {
		return "<nil-repo>"
	}
	return r.c.String()
}
func (r RepoId) Equal(o RepoId) bool { return r.c.Equals(o.c) }
func (r RepoId) Bytes() []byte       { return r.c.Bytes() }

// MarshalText/UnmarshalText let RepoId serve as a map key and a CBOR/YAML
// scalar without extra plumbing.
func (r RepoId) MarshalText() ([]byte, error) {
	if !r.c.Defined() {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidRepoId)
	}
	return []byte(r.c.String()), nil
}

func (r *RepoId) UnmarshalText(b []byte) error {
	parsed, err := ParseRepoId(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Oid is a Git object id: either a 20-byte SHA-1 or a 32-byte SHA-256 hash.
type Oid struct {
	b []byte
}

func NewOid(b []byte) (Oid, error) {
	switch len(b) {
	case 20, 32:
		cp := make([]byte, len(b))
		copy(cp, b)
		return Oid{b: cp}, nil
	default:
		return Oid{}, fmt.Errorf("%w: length %d", ErrInvalidOid, len(b))
	}
}

func ParseOid(hexStr string) (Oid, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Oid{}, fmt.Errorf("%w: %v", ErrInvalidOid, err)
	}
	return NewOid(b)
}

func (o Oid) IsZero() bool    { return len(o.b) == 0 }
func (o Oid) Bytes() []byte   { out := make([]byte, len(o.b)); copy(out, o.b); return out }
func (o Oid) String() string  { return hex.EncodeToString(o.b) }
func (o Oid) Equal(x Oid) bool { return bytes.Equal(o.b, x.b) }

func (o Oid) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o *Oid) UnmarshalText(b []byte) error {
	parsed, err := ParseOid(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// RefName is a validated Git reference name. A qualified name begins with
// "refs/".
type RefName string

func NewRefName(s string) (RefName, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if strings.Contains(s, "..") || strings.Contains(s, " ") ||
		strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") ||
		strings.Contains(s, "//") || strings.ContainsAny(s, "~^:?*[\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" || part == "." {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, s)
		}
	}
	return RefName(s), nil
}

func (r RefName) Qualified() bool { return strings.HasPrefix(string(r), "refs/") }

func (r RefName) String() string { return string(r) }

// Namespaced returns refs/namespaces/<nid>/<ref>.
func Namespaced(nid NodeId, ref RefName) RefName {
	return RefName(fmt.Sprintf("refs/namespaces/%s/%s", nid.String(), ref))
}

// SplitNamespace reverses Namespaced, returning ok=false if ref is not of
// that shape.
func SplitNamespace(ref RefName) (prefix string, rest RefName, ok bool) {
	s := string(ref)
	const p = "refs/namespaces/"
	if !strings.HasPrefix(s, p) {
		return "", "", false
	}
	rem := s[len(p):]
	idx := strings.Index(rem, "/")
	if idx < 0 {
		return "", "", false
	}
	return rem[:idx], RefName(rem[idx+1:]), true
}

const (
	RefRadId      RefName = "refs/rad/id"
	RefRadSigrefs RefName = "refs/rad/sigrefs"
)

// IsReplicated reports whether a (non-namespaced) ref under a peer's tree
// is ever replicated or signed. refs/drafts/** and refs/tmp/** never are.
func IsReplicated(ref RefName) bool {
	s := string(ref)
	return !strings.HasPrefix(s, "refs/drafts/") && !strings.HasPrefix(s, "refs/tmp/")
}

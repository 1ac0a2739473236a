// Package session implements the per-peer session layer (C2): handshake,
// conflict resolution between simultaneous dials, liveness, and
// persistent-peer reconnection, on top of the frame multiplexer in
// internal/wire.
package session

import (
	"time"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// State is the closed sum type a Session moves through: Initial,
// Negotiated, or Disconnected.
type State interface {
	isState()
}

// Initial is the state before a handshake completes.
type Initial struct{}

func (Initial) isState() {}

// Negotiated is reached once Initialize is received; it carries the
// remote's declared identity and addresses plus liveness bookkeeping.
type Negotiated struct {
	Remote    ids.NodeId
	Since     time.Time
	Addrs     []ma.Multiaddr
	PingState PingState
}

func (Negotiated) isState() {}

// Disconnected is terminal; Since records when the session ended.
type Disconnected struct {
	Since  time.Time
	Reason DisconnectReason
}

func (Disconnected) isState() {}

// PingState tracks the outstanding liveness probe, if any.
type PingState struct {
	// Outstanding is true between sending a Ping and receiving its
	// matching Pong.
	Outstanding bool
	SentAt      time.Time
}

// Direction records which side created the underlying connection.
type Direction uint8

const (
	Outbound Direction = iota
	Inbound
)

// Session is the per-peer record tracking a remote
// address, link direction, persistent flag, attempt counter,
// last_active, and current State.
type Session struct {
	RemoteAddr ma.Multiaddr
	Direction  Direction
	Persistent bool
	Attempts   int
	LastActive time.Time
	ResourceID uint64 // monotonic id assigned at connection creation, used to break ties
	LogID      string // opaque correlation id for structured logging, unrelated to tie-break ordering
	State      State
}

// New builds a Session in the Initial state for a freshly created
// connection. resourceID is the caller's monotonic counter value used
// for simultaneous-dial tie-breaking; LogID is a separate, randomly
// generated identifier so log lines for this session can be correlated
// without leaking the ordering counter into logs.
func New(remote ma.Multiaddr, dir Direction, persistent bool, resourceID uint64) *Session {
	return &Session{
		RemoteAddr: remote,
		Direction:  dir,
		Persistent: persistent,
		ResourceID: resourceID,
		LogID:      uuid.NewString(),
		State:      Initial{},
	}
}

// InitializeBundle is the handshake payload sent immediately after C1 is
// up: identity, protocol version, and addresses, followed separately by
// an inventory announcement, a subscription filter, and optionally a
// node announcement (handled by the gossip layer once Negotiated).
type InitializeBundle struct {
	Node      ids.NodeId
	Version   byte
	Addresses []ma.Multiaddr
}

package session

// DisconnectReason is the closed sum type naming why a session ended.
// Whether a reason is transient determines if a persistent peer gets
// re-dialed.
type DisconnectReason interface {
	isDisconnectReason()
	// Transient reports whether this reason should trigger a re-dial
	// for a persistent peer.
	Transient() bool
}

// Connection covers connection reset, timeout, and TLS failure — the
// transport-error bucket. Transient by default; the PersistentFailure
// field can override (e.g. a dial that never succeeded at all).
type Connection struct {
	PersistentFailure bool
}

func (Connection) isDisconnectReason() {}
func (c Connection) Transient() bool   { return !c.PersistentFailure }

// Misbehavior covers malformed frames, unexpected messages, invalid
// signatures, out-of-window timestamps, oversized ping requests, and
// gossip decode errors. Never transient: the remote has demonstrated it
// doesn't speak the protocol correctly.
type Misbehavior struct {
	Detail string
}

func (Misbehavior) isDisconnectReason() {}
func (Misbehavior) Transient() bool     { return false }

// Conflict marks the loser of a simultaneous-dial collision. Never
// transient: the winning session already covers this peer.
type Conflict struct{}

func (Conflict) isDisconnectReason() {}
func (Conflict) Transient() bool     { return false }

// SelfConnection marks a peer whose declared NodeId is the local node's
// own. Never transient.
type SelfConnection struct{}

func (SelfConnection) isDisconnectReason() {}
func (SelfConnection) Transient() bool     { return false }

// User marks a local Disconnect command. Never transient — it was asked
// for.
type User struct{}

func (User) isDisconnectReason() {}
func (User) Transient() bool     { return false }

// StaleConnection marks a session that missed STALE_CONNECTION_TIMEOUT
// worth of liveness. Transient: the remote may simply be reachable again
// later.
type StaleConnection struct{}

func (StaleConnection) isDisconnectReason() {}
func (StaleConnection) Transient() bool     { return true }

package session

import "github.com/rhizome-dev/rhizome/internal/ids"

// Candidate is the minimal information Resolve needs about one of two
// colliding sessions for the same remote NodeId.
type Candidate struct {
	Direction  Direction
	ResourceID uint64
}

// Resolve decides which of two simultaneous sessions for the same
// remote survives a dial collision. local and remote are
// the two endpoints' NodeIds being compared; a is the session under
// local's ownership whose Direction/ResourceID classify it against b.
//
// Rule: if the two sessions differ in direction (one inbound, one
// outbound), the node with the greater NodeId keeps its outbound
// session. If they're the same direction (both inbound or both
// outbound, from simultaneous redundant dials), the one with the lower
// ResourceID — the earlier connection — survives.
func Resolve(local, remote ids.NodeId, a, b Candidate) (winner Candidate) {
	if a.Direction != b.Direction {
		localIsGreater := local.Compare(remote) > 0
		outbound := a
		if b.Direction == Outbound {
			outbound = b
		}
		inbound := a
		if b.Direction == Inbound {
			inbound = b
		}
		if localIsGreater {
			return outbound
		}
		return inbound
	}
	if a.ResourceID < b.ResourceID {
		return a
	}
	return b
}

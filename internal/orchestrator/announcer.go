package orchestrator

import (
	"time"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// Announcer is the same target-reached contract as Fetcher, used after a
// local publish to confirm propagation: instead of dialing candidates
// itself, it just accumulates SyncedWith acknowledgements from nodes
// already known to be expected to sync.
type Announcer struct {
	*tracker
	expected []ids.NodeId
	pending  map[string]struct{} // expected nodes with no result yet
}

// NewAnnouncer constructs an Announcer tracking expected, the set of
// nodes that should sync after this publish (seeds, if any, are added to
// expected automatically since they must be tracked to ever succeed).
func NewAnnouncer(local ids.NodeId, seeds []ids.NodeId, replicas ReplicationFactor, expected []ids.NodeId) (*Announcer, error) {
	all := append([]ids.NodeId(nil), expected...)
	pending := make(map[string]struct{}, len(all))
	for _, n := range all {
		pending[key(n)] = struct{}{}
	}
	for _, s := range seeds {
		if _, ok := pending[key(s)]; !ok {
			pending[key(s)] = struct{}{}
			all = append(all, s)
		}
	}
	target, err := newTarget(seeds, clampToCandidates(replicas, len(all)))
	if err != nil {
		return nil, err
	}
	return &Announcer{
		tracker:  newTracker(local, target),
		expected: all,
		pending:  pending,
	}, nil
}

// SyncedWith records that node finished syncing after duration.
func (a *Announcer) SyncedWith(node ids.NodeId, duration time.Duration) StepResult {
	_ = duration // not tracked beyond this call; callers may log it themselves
	delete(a.pending, key(node))
	return a.recordSuccess(node)
}

// TimedOut ends the run: either the target was already reached, or every
// node still pending is reported as missed.
func (a *Announcer) TimedOut() FinishOutcome {
	missed := make([]ids.NodeId, 0, len(a.pending))
	for _, n := range a.expected {
		if _, ok := a.pending[key(n)]; ok {
			missed = append(missed, n)
		}
	}
	return a.finishOutcome(len(a.pending), missed)
}

package orchestrator

import (
	"errors"
	"fmt"

	"github.com/rhizome-dev/rhizome/internal/fetch"
	"github.com/rhizome-dev/rhizome/internal/ids"
)

// ErrNoCandidates is returned by New when no candidate seeds were given to
// fetch from.
var ErrNoCandidates = errors.New("orchestrator: no candidate nodes to fetch from")

// ReadyPeer is a candidate that has connected and is waiting to be
// dispatched for a fetch.
type ReadyPeer struct {
	Node ids.NodeId
	Addr string
}

// Fetcher drives C4 repeatedly against an ordered list of candidates until
// the replication target is met. It performs no I/O itself: the caller
// pumps NextNode/Connected/NextFetch/FetchComplete/FetchFailed as its own
// connections and fetches progress.
type Fetcher struct {
	*tracker
	candidates []ids.NodeId
	nextIdx    int
	triedSet   map[string]struct{}
	ready      []ReadyPeer
}

// New constructs a Fetcher. candidates is consumed in order; seeds (if
// non-empty) should also appear in candidates to ever be reachable.
// replicas is clamped to len(candidates) so a target can never demand more
// successes than there are nodes to try.
func New(local ids.NodeId, seeds []ids.NodeId, replicas ReplicationFactor, candidates []ids.NodeId) (*Fetcher, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	target, err := newTarget(seeds, clampToCandidates(replicas, len(candidates)))
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		tracker:    newTracker(local, target),
		candidates: candidates,
		triedSet:   make(map[string]struct{}),
	}, nil
}

// NextNode pops the next untried candidate, skipping the local node and
// any node that already has a result. Returns ok=false once candidates are
// exhausted or the target has been reached.
func (f *Fetcher) NextNode() (ids.NodeId, bool) {
	if f.broke != nil {
		return ids.NodeId{}, false
	}
	for f.nextIdx < len(f.candidates) {
		c := f.candidates[f.nextIdx]
		f.nextIdx++
		if c.Equal(f.local) || f.hasResult(c) {
			continue
		}
		k := key(c)
		if _, tried := f.triedSet[k]; tried {
			continue
		}
		f.triedSet[k] = struct{}{}
		return c, true
	}
	return ids.NodeId{}, false
}

// Connected marks node as ready to fetch from, at addr.
func (f *Fetcher) Connected(node ids.NodeId, addr string) {
	f.ready = append(f.ready, ReadyPeer{Node: node, Addr: addr})
}

// NextFetch pops the next connected, not-yet-dispatched peer.
func (f *Fetcher) NextFetch() (ReadyPeer, bool) {
	for len(f.ready) > 0 {
		p := f.ready[0]
		f.ready = f.ready[1:]
		if f.hasResult(p.Node) {
			continue
		}
		return p, true
	}
	return ReadyPeer{}, false
}

// FetchComplete records the result of a C4 fetch and evaluates whether
// the target has now been reached.
func (f *Fetcher) FetchComplete(node ids.NodeId, outcome fetch.Outcome) StepResult {
	if _, ok := outcome.(fetch.Success); ok {
		return f.recordSuccess(node)
	}
	return f.recordFailure(node, failureReason(outcome))
}

// FetchFailed records a failure for node without a fetch.Outcome, for
// cases where C4 was never invoked (e.g. the connection itself failed).
func (f *Fetcher) FetchFailed(node ids.NodeId, reason error) StepResult {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return f.recordFailure(node, msg)
}

// failureReason renders a non-Success fetch.Outcome as a short reason
// string for FailureRecord; Failed carries the most detail (how many
// remotes validated clean against the required threshold).
func failureReason(outcome fetch.Outcome) string {
	o, ok := outcome.(fetch.Failed)
	if !ok {
		return fmt.Sprintf("%v", outcome)
	}
	clean := 0
	for _, v := range o.Validations {
		if len(v.Discrepancies) == 0 {
			clean++
		}
	}
	return fmt.Sprintf("quorum not met: %d/%d remotes validated clean", clean, o.Threshold)
}

// Finish ends the run and reports whether the target was reached.
func (f *Fetcher) Finish() FinishOutcome {
	remaining := len(f.candidates) - f.nextIdx + len(f.ready)
	return f.finishOutcome(remaining, f.missedSeeds())
}

// Package orchestrator implements the fetch orchestrator (C5): a sans-I/O
// state machine that drives repeated fetches against a set of candidate
// nodes until a replication target is met, plus the Announcer variant used
// to confirm that a local publish propagated.
package orchestrator

import (
	"errors"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// ReplicationFactor is a closed sum type: either a single lower bound or a
// [min, max] range.
type ReplicationFactor interface {
	isReplicationFactor()
	lowerBound() int
}

// MustReach requires at least N successes with no upper bound; reaching N
// alone is sufficient to stop.
type MustReach struct{ N int }

func (MustReach) isReplicationFactor() {}
func (m MustReach) lowerBound() int    { return m.N }

// Range requires at least Min successes, and stops early at Max.
type Range struct{ Min, Max int }

func (Range) isReplicationFactor() {}
func (r Range) lowerBound() int    { return r.Min }

func upperBound(r ReplicationFactor) (int, bool) {
	if rng, ok := r.(Range); ok {
		return rng.Max, true
	}
	return 0, false
}

// clampToCandidates caps a replication factor's bounds at the number of
// candidates actually available, so a target can never demand more
// successes than there are nodes to try.
func clampToCandidates(r ReplicationFactor, n int) ReplicationFactor {
	switch v := r.(type) {
	case MustReach:
		if v.N > n {
			v.N = n
		}
		return v
	case Range:
		if v.Max > n {
			v.Max = n
		}
		if v.Min > v.Max {
			v.Min = v.Max
		}
		return v
	default:
		return r
	}
}

// ErrNoTarget is returned when neither a lower bound nor a set of preferred
// seeds was given: there would be nothing to reach.
var ErrNoTarget = errors.New("orchestrator: no replication target: need seeds or a positive replica count")

// Target is the condition a Fetcher or Announcer run is driving toward.
type Target struct {
	seeds    []ids.NodeId
	seedSet  map[string]struct{}
	replicas ReplicationFactor
}

func newTarget(seeds []ids.NodeId, replicas ReplicationFactor) (Target, error) {
	if replicas.lowerBound() == 0 && len(seeds) == 0 {
		return Target{}, ErrNoTarget
	}
	set := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		set[key(s)] = struct{}{}
	}
	return Target{seeds: seeds, seedSet: set, replicas: replicas}, nil
}

func (t Target) isSeed(n ids.NodeId) bool {
	_, ok := t.seedSet[key(n)]
	return ok
}

func key(n ids.NodeId) string { return string(n.Bytes()) }

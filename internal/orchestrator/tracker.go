package orchestrator

import "github.com/rhizome-dev/rhizome/internal/ids"

// FailureRecord names a node whose fetch or sync failed, with the reason
// given at the time (empty if none was given).
type FailureRecord struct {
	Node   ids.NodeId
	Reason string
}

// tracker holds the success/failure bookkeeping shared by Fetcher and
// Announcer: once either records enough successes to satisfy target, it
// latches the outcome so every later event reports the same Break.
type tracker struct {
	local  ids.NodeId
	target Target

	successes  []ids.NodeId
	successSet map[string]struct{}
	failures   []FailureRecord
	failureSet map[string]struct{}

	broke SuccessfulOutcome // non-nil once the target has been reached
}

func newTracker(local ids.NodeId, target Target) *tracker {
	return &tracker{
		local:      local,
		target:     target,
		successSet: make(map[string]struct{}),
		failureSet: make(map[string]struct{}),
	}
}

// hasResult reports whether node already has a recorded success or
// failure, so it's never tried (or counted) twice.
func (t *tracker) hasResult(n ids.NodeId) bool {
	k := key(n)
	_, s := t.successSet[k]
	_, f := t.failureSet[k]
	return s || f
}

func (t *tracker) recordSuccess(n ids.NodeId) StepResult {
	if n.Equal(t.local) || t.hasResult(n) {
		return t.step()
	}
	k := key(n)
	t.successSet[k] = struct{}{}
	t.successes = append(t.successes, n)
	return t.step()
}

func (t *tracker) recordFailure(n ids.NodeId, reason string) StepResult {
	if n.Equal(t.local) || t.hasResult(n) {
		return t.step()
	}
	k := key(n)
	t.failureSet[k] = struct{}{}
	t.failures = append(t.failures, FailureRecord{Node: n, Reason: reason})
	return t.step()
}

// Failures returns every recorded failure so far, in the order received.
func (t *tracker) Failures() []FailureRecord {
	out := make([]FailureRecord, len(t.failures))
	copy(out, t.failures)
	return out
}

func (t *tracker) step() StepResult {
	if t.broke != nil {
		return Break{Outcome: t.broke}
	}
	if outcome := t.evaluate(); outcome != nil {
		t.broke = outcome
		return Break{Outcome: outcome}
	}
	return Continue{Progress: t.progress()}
}

// evaluate applies the target-reached rule in order: preferred seeds
// first, then an upper bound, then a bare lower bound (only when the
// replication factor is unbounded).
func (t *tracker) evaluate() SuccessfulOutcome {
	if len(t.target.seeds) > 0 && t.allSeedsSucceeded() {
		return PreferredNodes{Preferred: len(t.target.seeds)}
	}
	lower := t.target.replicas.lowerBound()
	if upper, hasUpper := upperBound(t.target.replicas); hasUpper {
		if len(t.successes) >= upper {
			return MaxReplicas{Succeeded: len(t.successes), Min: lower, Max: upper}
		}
		return nil
	}
	if len(t.successes) >= lower {
		return MinReplicas{Succeeded: len(t.successes), Min: lower}
	}
	return nil
}

func (t *tracker) allSeedsSucceeded() bool {
	for _, s := range t.target.seeds {
		if _, ok := t.successSet[key(s)]; !ok {
			return false
		}
	}
	return true
}

func (t *tracker) preferredSuccesses() int {
	n := 0
	for _, s := range t.successes {
		if t.target.isSeed(s) {
			n++
		}
	}
	return n
}

func (t *tracker) progress() Progress {
	return Progress{
		Succeeded: len(t.successes),
		Failed:    len(t.failures),
		Preferred: t.preferredSuccesses(),
	}
}

// missedSeeds returns every seed without a recorded success.
func (t *tracker) missedSeeds() []ids.NodeId {
	var missed []ids.NodeId
	for _, s := range t.target.seeds {
		if _, ok := t.successSet[key(s)]; !ok {
			missed = append(missed, s)
		}
	}
	return missed
}

func (t *tracker) neededMore() int {
	lower := t.target.replicas.lowerBound()
	if n := lower - len(t.successes); n > 0 {
		return n
	}
	return 0
}

// finishOutcome builds the Finish/TimedOut result. missed is caller-
// supplied since Fetcher only ever reports missed preferred seeds while
// Announcer reports every expected node that never synced.
func (t *tracker) finishOutcome(remaining int, missed []ids.NodeId) FinishOutcome {
	progress := t.progress()
	progress.Remaining = remaining
	if t.broke != nil {
		return TargetReached{Outcome: t.broke, Progress: progress}
	}
	return TargetError{Missed: missed, NeededMore: t.neededMore(), Progress: progress}
}

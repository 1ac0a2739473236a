package orchestrator

import "github.com/rhizome-dev/rhizome/internal/ids"

// Progress is a snapshot of how a run is doing, returned after every
// completed fetch (or sync, for the Announcer) so the caller can decide
// whether to log, report, or keep going.
type Progress struct {
	Succeeded int
	Failed    int
	Preferred int // successes that were also preferred seeds
	Remaining int // untried candidates, or unsynced nodes for the Announcer; set only by Finish/TimedOut, zero in Continue
}

// SuccessfulOutcome is the closed sum type of reasons a run can conclude
// successfully; which one fires depends on the target-reached evaluation
// order (preferred seeds first, then an upper bound, then a bare lower
// bound).
type SuccessfulOutcome interface {
	isSuccessfulOutcome()
}

// PreferredNodes means every preferred seed was reached.
type PreferredNodes struct{ Preferred int }

func (PreferredNodes) isSuccessfulOutcome() {}

// MaxReplicas means the replication factor's upper bound was reached.
type MaxReplicas struct{ Succeeded, Min, Max int }

func (MaxReplicas) isSuccessfulOutcome() {}

// MinReplicas means an unbounded replication factor's lower bound was
// reached; it never fires when the factor has an upper bound, since that
// case runs on toward MaxReplicas (or exhausts candidates first).
type MinReplicas struct{ Succeeded, Min int }

func (MinReplicas) isSuccessfulOutcome() {}

// StepResult is returned after every event that can conclude a run: either
// Continue with the latest Progress, or Break once the target is reached.
type StepResult interface {
	isStepResult()
}

type Continue struct{ Progress Progress }

func (Continue) isStepResult() {}

type Break struct{ Outcome SuccessfulOutcome }

func (Break) isStepResult() {}

// FinishOutcome is what Finish/TimedOut returns when the caller gives up
// driving the run, whether or not the target was ever reached.
type FinishOutcome interface {
	isFinishOutcome()
}

// TargetReached means the run already broke out with a SuccessfulOutcome
// before Finish was called.
type TargetReached struct {
	Outcome  SuccessfulOutcome
	Progress Progress
}

func (TargetReached) isFinishOutcome() {}

// TargetError means the run ended without reaching its target: Missed
// names the preferred seeds (or, for the Announcer, every node that never
// synced) that are responsible, and NeededMore is how many additional
// successes would have closed the gap to the lower bound.
type TargetError struct {
	Missed     []ids.NodeId
	NeededMore int
	Progress   Progress
}

func (TargetError) isFinishOutcome() {}

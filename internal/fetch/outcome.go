package fetch

import "github.com/rhizome-dev/rhizome/internal/ids"

// Outcome is the closed sum type a fetch resolves to: Success once
// enough delegates validate to clear quorum, Failed otherwise.
type Outcome interface {
	isOutcome()
}

// Success carries exactly which refs changed, which remotes
// contributed, and every validation performed (including those for
// remotes that were pruned along the way).
type Success struct {
	Applied     map[ids.RefName]ids.Oid
	Remotes     []ids.NodeId
	Validations []Validation
}

func (Success) isOutcome() {}

// Failed means quorum was not reached; the live store was left
// untouched.
type Failed struct {
	Threshold   int
	Delegates   []ids.NodeId // delegates whose validation failed or were pruned
	Validations []Validation
}

func (Failed) isOutcome() {}

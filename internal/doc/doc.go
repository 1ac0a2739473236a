// Package doc implements the per-repository identity document: the anchor
// that defines a repository's delegate set, visibility, and canonical
// reference rules. It lives at refs/rad/id in each peer's namespace.
package doc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

const CurrentVersion = 2

// ProjectPayloadId is the well-known payload entry describing a code
// project; consumers validate their own schema against it.
const ProjectPayloadId = "xyz.rhizome.project"

// ProjectPayload is the one payload entry the replication core itself
// looks at (to find the default branch for the implicit canonical rule
// and the delegate default-branch check in the fetch state machine).
// Every other payload entry is opaque to this package.
type ProjectPayload struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"defaultBranch"`
}

// Visibility is a closed sum type: a repository is either Public or
// Private with an explicit allow-list.
type Visibility interface {
	isVisibility()
}

type Public struct{}

func (Public) isVisibility() {}

type Private struct {
	Allow []ids.NodeId
}

func (Private) isVisibility() {}

// RuleAllow selects who may satisfy a CanonicalRule: either the full
// delegate set, or an explicit subset.
type RuleAllow interface {
	isRuleAllow()
}

type AllowDelegates struct{}

func (AllowDelegates) isRuleAllow() {}

type AllowSet struct {
	Nodes []ids.NodeId
}

func (AllowSet) isRuleAllow() {}

// CanonicalRule maps a qualified ref pattern to the delegate quorum
// required to set the canonical value of that ref.
type CanonicalRule struct {
	Pattern   string
	Allow     RuleAllow
	Threshold int
}

// Doc is the validated, in-memory identity document.
type Doc struct {
	Version    int
	Payload    map[string]json.RawMessage
	Delegates  []ids.NodeId
	Visibility Visibility
	Rules      []CanonicalRule
}

// Project returns the parsed ProjectPayload, if present.
func (d *Doc) Project() (ProjectPayload, bool, error) {
	raw, ok := d.Payload[ProjectPayloadId]
	if !ok {
		return ProjectPayload{}, false, nil
	}
	var p ProjectPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ProjectPayload{}, true, fmt.Errorf("doc: decode project payload: %w", err)
	}
	return p, true, nil
}

// IsDelegate reports whether nid is one of the document's delegates.
func (d *Doc) IsDelegate(nid ids.NodeId) bool {
	for _, del := range d.Delegates {
		if del.Equal(nid) {
			return true
		}
	}
	return false
}

// RuleFor returns the most specific canonical rule matching ref, if any.
// Specificity is the length of the literal (non-wildcard) prefix.
func (d *Doc) RuleFor(ref ids.RefName) (CanonicalRule, bool) {
	best := CanonicalRule{}
	bestLen := -1
	found := false
	for _, r := range d.Rules {
		if !matchPattern(r.Pattern, string(ref)) {
			continue
		}
		lit := literalPrefixLen(r.Pattern)
		if lit > bestLen {
			best, bestLen, found = r, lit, true
		}
	}
	return best, found
}

func literalPrefixLen(pattern string) int {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return i
	}
	return len(pattern)
}

// matchPattern supports a single trailing "/**" or "*" wildcard, which is
// all canonical reference rules need.
func matchPattern(pattern, ref string) bool {
	if strings.HasSuffix(pattern, "/**") {
		return ref == strings.TrimSuffix(pattern, "/**") || strings.HasPrefix(ref, strings.TrimSuffix(pattern, "**"))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(ref, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == ref
}

// Validate enforces structural invariants: unique delegates (max
// 255), threshold ≤ delegate count, and rule patterns may not target
// refs/rad/*.
func (d *Doc) Validate() error {
	if len(d.Delegates) == 0 {
		return fmt.Errorf("%w: no delegates", ErrInvalidDoc)
	}
	if len(d.Delegates) > 255 {
		return fmt.Errorf("%w: more than 255 delegates", ErrInvalidDoc)
	}
	seen := make(map[string]struct{}, len(d.Delegates))
	for _, del := range d.Delegates {
		key := string(del.Bytes())
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate delegate %s", ErrInvalidDoc, del)
		}
		seen[key] = struct{}{}
	}
	for _, r := range d.Rules {
		if strings.HasPrefix(r.Pattern, "refs/rad/") {
			return fmt.Errorf("%w: rule pattern %q targets refs/rad/*", ErrInvalidDoc, r.Pattern)
		}
		allowed := len(d.Delegates)
		if set, ok := r.Allow.(AllowSet); ok {
			allowed = len(set.Nodes)
		}
		if r.Threshold < 1 || r.Threshold > allowed || r.Threshold > 255 {
			return fmt.Errorf("%w: rule %q threshold %d out of range [1,%d]", ErrInvalidDoc, r.Pattern, r.Threshold, allowed)
		}
	}
	return nil
}

// canonicalEncMode produces deterministic CBOR: sorted map keys, no
// indefinite-length items — the "canonical encoding" every signature in
// this subsystem is computed over.
var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Canonical returns the canonical CBOR encoding of the document, the
// bytes a signature over refs/rad/id is computed against.
func (d *Doc) Canonical() ([]byte, error) {
	raw, err := d.toRaw()
	if err != nil {
		return nil, err
	}
	return canonicalEncMode.Marshal(raw)
}

package doc

import (
	"encoding/json"
	"fmt"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// RawDoc is the wire/blob encoding of an identity document: the bytes that
// actually live in the refs/rad/id Git blob. Doc is the validated,
// in-memory projection of a RawDoc.
type RawDoc struct {
	Version    int                        `cbor:"version"`
	Payload    map[string]json.RawMessage `cbor:"payload"`
	Delegates  [][]byte                   `cbor:"delegates"`
	Visibility RawVisibility              `cbor:"visibility"`

	// Rules is non-empty only for Version >= 2.
	Rules []RawRule `cbor:"rules,omitempty"`

	// Threshold is the legacy Version == 1 top-level quorum; nil in v2.
	Threshold *int `cbor:"threshold,omitempty"`
}

type RawVisibility struct {
	Tag   string   `cbor:"tag"`
	Allow [][]byte `cbor:"allow,omitempty"`
}

type RawRule struct {
	Pattern   string   `cbor:"pattern"`
	AllowTag  string   `cbor:"allowTag"`
	AllowSet  [][]byte `cbor:"allowSet,omitempty"`
	Threshold int      `cbor:"threshold"`
}

// Parse decodes and validates a RawDoc, migrating Version == 1 documents
// to the current schema first (RawDoc -> Doc -> RawDoc is identity on
// already-verified v2 documents; v1 documents round-trip to their
// migrated v2 form, not their original bytes).
func Parse(raw RawDoc) (*Doc, error) {
	switch raw.Version {
	case 1:
		migrated, err := migrateV1(raw)
		if err != nil {
			return nil, err
		}
		raw = migrated
	case 2:
		// current
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, raw.Version)
	}

	delegates := make([]ids.NodeId, 0, len(raw.Delegates))
	for _, b := range raw.Delegates {
		nid, err := ids.ParseNodeId(b)
		if err != nil {
			return nil, fmt.Errorf("doc: delegate: %w", err)
		}
		delegates = append(delegates, nid)
	}

	vis, err := parseVisibility(raw.Visibility)
	if err != nil {
		return nil, err
	}

	rules := make([]CanonicalRule, 0, len(raw.Rules))
	for _, rr := range raw.Rules {
		r, err := parseRule(rr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	d := &Doc{
		Version:    CurrentVersion,
		Payload:    raw.Payload,
		Delegates:  delegates,
		Visibility: vis,
		Rules:      rules,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseVisibility(rv RawVisibility) (Visibility, error) {
	switch rv.Tag {
	case "public":
		return Public{}, nil
	case "private":
		allow := make([]ids.NodeId, 0, len(rv.Allow))
		for _, b := range rv.Allow {
			nid, err := ids.ParseNodeId(b)
			if err != nil {
				return nil, fmt.Errorf("doc: visibility allow: %w", err)
			}
			allow = append(allow, nid)
		}
		return Private{Allow: allow}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadVisibility, rv.Tag)
	}
}

func parseRule(rr RawRule) (CanonicalRule, error) {
	var allow RuleAllow
	switch rr.AllowTag {
	case "delegates":
		allow = AllowDelegates{}
	case "set":
		nodes := make([]ids.NodeId, 0, len(rr.AllowSet))
		for _, b := range rr.AllowSet {
			nid, err := ids.ParseNodeId(b)
			if err != nil {
				return CanonicalRule{}, fmt.Errorf("doc: rule allow set: %w", err)
			}
			nodes = append(nodes, nid)
		}
		allow = AllowSet{Nodes: nodes}
	default:
		return CanonicalRule{}, fmt.Errorf("%w: %q", ErrBadRuleAllow, rr.AllowTag)
	}
	return CanonicalRule{Pattern: rr.Pattern, Allow: allow, Threshold: rr.Threshold}, nil
}

// toRaw is the inverse of Parse for an already-validated v2 Doc.
func (d *Doc) toRaw() (RawDoc, error) {
	delegates := make([][]byte, len(d.Delegates))
	for i, n := range d.Delegates {
		delegates[i] = n.Bytes()
	}

	var rv RawVisibility
	switch v := d.Visibility.(type) {
	case Public:
		rv = RawVisibility{Tag: "public"}
	case Private:
		rv.Tag = "private"
		rv.Allow = make([][]byte, len(v.Allow))
		for i, n := range v.Allow {
			rv.Allow[i] = n.Bytes()
		}
	default:
		return RawDoc{}, fmt.Errorf("%w: unknown visibility type %T", ErrBadVisibility, v)
	}

	rules := make([]RawRule, len(d.Rules))
	for i, r := range d.Rules {
		rr := RawRule{Pattern: r.Pattern, Threshold: r.Threshold}
		switch a := r.Allow.(type) {
		case AllowDelegates:
			rr.AllowTag = "delegates"
		case AllowSet:
			rr.AllowTag = "set"
			rr.AllowSet = make([][]byte, len(a.Nodes))
			for j, n := range a.Nodes {
				rr.AllowSet[j] = n.Bytes()
			}
		default:
			return RawDoc{}, fmt.Errorf("%w: unknown rule allow type %T", ErrBadRuleAllow, a)
		}
		rules[i] = rr
	}

	return RawDoc{
		Version:    CurrentVersion,
		Payload:    d.Payload,
		Delegates:  delegates,
		Visibility: rv,
		Rules:      rules,
	}, nil
}

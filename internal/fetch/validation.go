package fetch

import (
	"context"
	"fmt"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/refdb"
)

// Discrepancy is the closed sum type of ways a remote's candidate refs
// can fail to match what it signed.
type Discrepancy interface {
	isDiscrepancy()
	String() string
}

// MismatchedRef means ref is present in the shadow store under a value
// other than what the manifest signed.
type MismatchedRef struct {
	Ref    ids.RefName
	Signed ids.Oid
	Got    ids.Oid
}

func (MismatchedRef) isDiscrepancy() {}
func (m MismatchedRef) String() string {
	return fmt.Sprintf("mismatched ref %s: signed %s, got %s", m.Ref, m.Signed, m.Got)
}

// UnsignedRef means a ref exists under the remote's namespace that its
// signed manifest doesn't mention.
type UnsignedRef struct {
	Ref ids.RefName
}

func (UnsignedRef) isDiscrepancy() {}
func (u UnsignedRef) String() string {
	return fmt.Sprintf("unsigned ref %s", u.Ref)
}

// MissingRef means the manifest signs ref but no such ref was actually
// fetched.
type MissingRef struct {
	Ref    ids.RefName
	Signed ids.Oid
}

func (MissingRef) isDiscrepancy() {}
func (m MissingRef) String() string {
	return fmt.Sprintf("missing ref %s (signed %s)", m.Ref, m.Signed)
}

// MissingRadSigRefs means the remote has no signed refs manifest at all.
type MissingRadSigRefs struct{}

func (MissingRadSigRefs) isDiscrepancy() {}
func (MissingRadSigRefs) String() string { return "missing refs/rad/sigrefs" }

// Validation accumulates the discrepancies found for one remote.
type Validation struct {
	Remote        ids.NodeId
	Discrepancies []Discrepancy
}

func (v Validation) ok() bool { return len(v.Discrepancies) == 0 }

// ErrDivergedDelegate is returned when a delegate's candidate sigrefs
// has diverged from the live value: fatal to the whole fetch, not just
// that remote.
var ErrDivergedDelegate = fmt.Errorf("fetch: delegate sigrefs diverged from live value")

// pruneByAncestry implements validation step 1: compare each remote's
// candidate refs/rad/sigrefs oid against the live value. A non-delegate
// that is Behind or Diverged is pruned. A delegate that is Behind is
// pruned; a delegate that is Diverged aborts the whole fetch.
func pruneByAncestry(ctx context.Context, live refdb.LiveStore, overlay *refdb.Overlay, remotes []*remoteState) ([]*remoteState, error) {
	kept := make([]*remoteState, 0, len(remotes))
	for _, r := range remotes {
		if r.manifest == nil {
			kept = append(kept, r)
			continue
		}
		sigrefsRef := namespacedRef(r.node, "refs/rad/sigrefs")
		liveOid, haveLive, err := live.Ref(ctx, sigrefsRef)
		if err != nil {
			return nil, fmt.Errorf("fetch: read live sigrefs for %s: %w", r.node, err)
		}
		if !haveLive {
			kept = append(kept, r)
			continue
		}
		candidateOid, haveCandidate, err := overlay.Ref(ctx, sigrefsRef)
		if err != nil || !haveCandidate {
			kept = append(kept, r)
			continue
		}
		ancestry, err := overlay.Compare(ctx, liveOid, candidateOid)
		if err != nil {
			return nil, fmt.Errorf("fetch: ancestry for %s: %w", r.node, err)
		}
		switch ancestry {
		case refdb.Behind, refdb.Diverged:
			if r.isDelegate && ancestry == refdb.Diverged {
				return nil, fmt.Errorf("%w: delegate %s", ErrDivergedDelegate, r.node)
			}
			overlay.DropPrefix(string(namespacePrefix(r.node)))
			continue
		default:
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// validateRemote implements validation steps 2-3 for one remote: every
// ref the manifest signs must be present with the signed oid, no extra
// refs may exist in the namespace, and a delegate with a project payload
// must sign the default branch.
func validateRemote(ctx context.Context, overlay *refdb.Overlay, defaultBranchRef ids.RefName, r *remoteState) Validation {
	v := Validation{Remote: r.node}
	if r.manifest == nil {
		v.Discrepancies = append(v.Discrepancies, MissingRadSigRefs{})
		return v
	}

	prefix := namespacePrefix(r.node)
	staged := overlay.StagedUnder(string(prefix))
	seen := make(map[ids.RefName]struct{}, len(r.manifest.Refs))

	for ref, signedOid := range r.manifest.Refs {
		full := namespacedRef(r.node, string(ref))
		seen[ref] = struct{}{}
		got, ok := staged[full]
		if !ok {
			v.Discrepancies = append(v.Discrepancies, MissingRef{Ref: full, Signed: signedOid})
			continue
		}
		if !got.Equal(signedOid) {
			v.Discrepancies = append(v.Discrepancies, MismatchedRef{Ref: full, Signed: signedOid, Got: got})
		}
	}

	for full := range staged {
		rel, ok := stripNamespace(full, r.node)
		if !ok || rel == "refs/rad/id" || rel == "refs/rad/sigrefs" {
			continue // special refs are fetched in S1/S2, not signed by the manifest itself
		}
		if _, signed := seen[rel]; !signed {
			v.Discrepancies = append(v.Discrepancies, UnsignedRef{Ref: full})
		}
	}

	if r.isDelegate && defaultBranchRef != "" {
		if _, signed := r.manifest.Refs[defaultBranchRef]; !signed {
			v.Discrepancies = append(v.Discrepancies, MissingRef{Ref: namespacedRef(r.node, string(defaultBranchRef))})
		}
	}

	return v
}

func namespacePrefix(node ids.NodeId) ids.RefName {
	return ids.RefName(fmt.Sprintf("refs/namespaces/%s/", node.String()))
}

func namespacedRef(node ids.NodeId, ref string) ids.RefName {
	return ids.RefName(fmt.Sprintf("refs/namespaces/%s/%s", node.String(), ref))
}

func stripNamespace(full ids.RefName, node ids.NodeId) (ids.RefName, bool) {
	prefix := string(namespacePrefix(node))
	s := string(full)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return ids.RefName(s[len(prefix):]), true
}

package fetch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rhizome-dev/rhizome/internal/doc"
	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/refdb"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// MaxConcurrentS2Remotes bounds how many trust-set remotes stage S2 runs
// against at once. Each one opens its own Git transport stream, so this
// is also the worker pool's concurrency cap on that resource.
const MaxConcurrentS2Remotes = 4

// RemoteSpec names one peer to fetch from and whether the local
// identity document currently considers it a delegate.
type RemoteSpec struct {
	Node       ids.NodeId
	Transport  Transport
	IsDelegate bool
}

// remoteState accumulates what's been learned about one remote across
// stages.
type remoteState struct {
	node       ids.NodeId
	transport  Transport
	isDelegate bool
	manifest   *sigrefs.Manifest
}

// Machine drives the staged fetch against a single chosen repository's
// shadow reference database.
type Machine struct {
	overlay *refdb.Overlay
	live    refdb.LiveStore

	localDoc        *doc.Doc
	localIsDelegate bool

	specialLimit int64
	dataLimit    int64
}

// NewMachine constructs a Machine over overlay/live for one repository.
// localDoc is the local peer's current view of the canonical identity
// document (used to compute the delegate quorum threshold); it is
// re-read from the primary remote's own declaration between S1 and S2,
// so a delegate set just changed by the remote can vote in its own
// update.
func NewMachine(overlay *refdb.Overlay, live refdb.LiveStore, localDoc *doc.Doc, localIsDelegate bool) *Machine {
	return &Machine{
		overlay:         overlay,
		live:            live,
		localDoc:        localDoc,
		localIsDelegate: localIsDelegate,
		specialLimit:    DefaultSpecialRefsLimit,
		dataLimit:       DefaultDataRefsLimit,
	}
}

// SetByteLimits overrides the default S1/S2 and S3 byte caps, mainly for
// tests.
func (m *Machine) SetByteLimits(special, data int64) {
	m.specialLimit = special
	m.dataLimit = data
}

// Fetch runs S1 against primary, re-reads the canonical identity, runs
// S2 against every remote in trustSet (the delegates and followed peers
// within scope, primary included if it's part of that set), runs S3
// against whatever refs the loaded manifests sign, validates, and
// applies under quorum. alreadyValidDelegates are delegates already
// known good from prior fetches (not re-fetched here) that still count
// toward quorum.
func (m *Machine) Fetch(ctx context.Context, primary RemoteSpec, trustSet []RemoteSpec, alreadyValidDelegates []ids.NodeId) (Outcome, error) {
	callID := uuid.NewString()

	// doneAll is the best-effort Done sent to every transport when a
	// stage fails, so the remote upload-pack processes can exit.
	doneAll := func() {
		_ = primary.Transport.Done(ctx)
		for _, spec := range trustSet {
			_ = spec.Transport.Done(ctx)
		}
	}

	if err := m.stageS1(ctx, primary); err != nil {
		doneAll()
		return nil, fmt.Errorf("fetch[%s]: stage S1: %w", callID, err)
	}

	if d, ok, err := primary.Transport.IdentityDoc(ctx); err != nil {
		doneAll()
		return nil, fmt.Errorf("fetch[%s]: read canonical identity after S1: %w", callID, err)
	} else if ok {
		m.localDoc = d
	}

	remotes, err := m.runStageS2(ctx, trustSet)
	if err != nil {
		doneAll()
		return nil, fmt.Errorf("fetch[%s]: %w", callID, err)
	}

	if err := m.stageS3(ctx, remotes); err != nil {
		doneAll()
		return nil, fmt.Errorf("fetch[%s]: stage S3: %w", callID, err)
	}

	for _, r := range remotes {
		_ = r.transport.Done(ctx)
	}

	remotes, err = pruneByAncestry(ctx, m.live, m.overlay, remotes)
	if err != nil {
		return nil, err
	}

	var defaultBranch ids.RefName
	if m.localDoc != nil {
		if proj, ok, _ := m.localDoc.Project(); ok && proj.DefaultBranch != "" {
			defaultBranch = ids.RefName("refs/heads/" + proj.DefaultBranch)
		}
	}

	validations := make([]Validation, 0, len(remotes))
	var failedDelegates []ids.NodeId
	validDelegates := append([]ids.NodeId(nil), alreadyValidDelegates...)

	kept := make([]*remoteState, 0, len(remotes))
	for _, r := range remotes {
		v := validateRemote(ctx, m.overlay, defaultBranch, r)
		validations = append(validations, v)
		if !v.ok() {
			m.overlay.DropPrefix(string(namespacePrefix(r.node)))
			if r.isDelegate {
				failedDelegates = append(failedDelegates, r.node)
			}
			continue
		}
		if r.isDelegate {
			validDelegates = append(validDelegates, r.node)
		}
		kept = append(kept, r)
	}

	threshold := m.threshold()
	if len(dedupeNodes(validDelegates)) < threshold {
		return Failed{Threshold: threshold, Delegates: failedDelegates, Validations: validations}, nil
	}

	applied, err := m.overlay.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch[%s]: apply: %w", callID, err)
	}

	remoteNodes := make([]ids.NodeId, 0, len(kept))
	for _, r := range kept {
		remoteNodes = append(remoteNodes, r.node)
	}
	return Success{Applied: applied, Remotes: remoteNodes, Validations: validations}, nil
}

// threshold is the identity document's delegate quorum, generalized
// from the canonical rule governing refs/rad/sigrefs (falling back to
// "every delegate" if no rule matches), minus one if the local peer is
// itself a delegate (it doesn't need to self-confirm).
func (m *Machine) threshold() int {
	t := len(m.localDoc.Delegates)
	if rule, ok := m.localDoc.RuleFor("refs/rad/sigrefs"); ok {
		t = rule.Threshold
	}
	if m.localIsDelegate && t > 0 {
		t--
	}
	return t
}

func dedupeNodes(nodes []ids.NodeId) []ids.NodeId {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]ids.NodeId, 0, len(nodes))
	for _, n := range nodes {
		key := string(n.Bytes())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (m *Machine) stageS1(ctx context.Context, primary RemoteSpec) error {
	prefix := string(namespacePrefix(primary.Node)) + "refs/rad/id"
	refs, err := primary.Transport.LsRefs(ctx, []string{prefix})
	if err != nil {
		return fmt.Errorf("%w: ls-refs: %v", ErrTransport, err)
	}
	if err := primary.Transport.FetchPack(ctx, refs, m.specialLimit); err != nil {
		return err
	}
	m.stageRefs(refs)
	return nil
}

// runStageS2 fans stageS2 out across trustSet, bounded to
// MaxConcurrentS2Remotes concurrent transports at once, and returns the
// results in trustSet's original order regardless of completion order.
// The first stage failure cancels the remaining work via the errgroup's
// derived context and is returned once every in-flight call unwinds.
func (m *Machine) runStageS2(ctx context.Context, trustSet []RemoteSpec) ([]*remoteState, error) {
	remotes := make([]*remoteState, len(trustSet))
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(MaxConcurrentS2Remotes)

	for i, spec := range trustSet {
		i, spec := i, spec
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			rs, err := m.stageS2(gctx, spec)
			if err != nil {
				return fmt.Errorf("stage S2 for %s: %w", spec.Node, err)
			}
			remotes[i] = rs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return remotes, nil
}

func (m *Machine) stageS2(ctx context.Context, spec RemoteSpec) (*remoteState, error) {
	prefixes := []string{
		string(namespacePrefix(spec.Node)) + "refs/rad/id",
		string(namespacePrefix(spec.Node)) + "refs/rad/sigrefs",
	}
	refs, err := spec.Transport.LsRefs(ctx, prefixes)
	if err != nil {
		return nil, fmt.Errorf("%w: ls-refs: %v", ErrTransport, err)
	}
	if err := spec.Transport.FetchPack(ctx, refs, m.specialLimit); err != nil {
		return nil, err
	}
	m.stageRefs(refs)

	manifest, ok, err := spec.Transport.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: decode manifest for %s: %w", spec.Node, err)
	}
	rs := &remoteState{node: spec.Node, transport: spec.Transport, isDelegate: spec.IsDelegate}
	if ok {
		rs.manifest = manifest
	}
	return rs, nil
}

func (m *Machine) stageS3(ctx context.Context, remotes []*remoteState) error {
	for _, r := range remotes {
		if r.manifest == nil {
			continue
		}
		wants := make(map[ids.RefName]ids.Oid, len(r.manifest.Refs))
		for ref, oid := range r.manifest.Refs {
			wants[namespacedRef(r.node, string(ref))] = oid
		}
		refs, err := r.transport.LsRefs(ctx, refListPrefixes(wants))
		if err != nil {
			return fmt.Errorf("%w: ls-refs for %s: %v", ErrTransport, r.node, err)
		}
		if err := r.transport.FetchPack(ctx, refs, m.dataLimit); err != nil {
			return fmt.Errorf("%s: %w", r.node, err)
		}
		m.stageRefs(refs)
	}
	return nil
}

func refListPrefixes(refs map[ids.RefName]ids.Oid) []string {
	out := make([]string, 0, len(refs))
	for ref := range refs {
		out = append(out, string(ref))
	}
	return out
}

func (m *Machine) stageRefs(refs map[ids.RefName]ids.Oid) {
	for ref, oid := range refs {
		m.overlay.Stage(ref, oid)
	}
}

package fetch

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/rhizome-dev/rhizome/internal/doc"
	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/refdb"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

type fakeTransport struct {
	refs     map[ids.RefName]ids.Oid
	doc      *doc.Doc
	manifest *sigrefs.Manifest
}

func (f *fakeTransport) LsRefs(ctx context.Context, prefixes []string) (map[ids.RefName]ids.Oid, error) {
	out := make(map[ids.RefName]ids.Oid)
	for ref, oid := range f.refs {
		for _, p := range prefixes {
			if hasPrefixStr(string(ref), p) {
				out[ref] = oid
				break
			}
		}
	}
	return out, nil
}

func hasPrefixStr(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (f *fakeTransport) FetchPack(ctx context.Context, wants map[ids.RefName]ids.Oid, byteLimit int64) error {
	return nil
}

func (f *fakeTransport) Done(ctx context.Context) error { return nil }

func (f *fakeTransport) IdentityDoc(ctx context.Context) (*doc.Doc, bool, error) {
	if f.doc == nil {
		return nil, false, nil
	}
	return f.doc, true, nil
}

func (f *fakeTransport) Manifest(ctx context.Context) (*sigrefs.Manifest, bool, error) {
	if f.manifest == nil {
		return nil, false, nil
	}
	return f.manifest, true, nil
}

func genNode(t *testing.T) ids.NodeId {
	t.Helper()
	_, pub, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		t.Fatal(err)
	}
	nid, err := ids.NewNodeId(pub)
	if err != nil {
		t.Fatal(err)
	}
	return nid
}

func oid(t *testing.T, seed byte) ids.Oid {
	t.Helper()
	b := make([]byte, 20)
	b[0] = seed
	o, err := ids.NewOid(b)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

// oneDelegateDoc builds a document whose quorum threshold falls back to
// len(Delegates) (rules can't target refs/rad/* per doc.Validate, so
// threshold() never finds a matching rule for the sigrefs quorum
// itself); delegates is padded with extras to exercise a non-unanimous
// threshold where needed.
func oneDelegateDoc(t *testing.T, delegates ...ids.NodeId) *doc.Doc {
	t.Helper()
	return &doc.Doc{
		Version:    doc.CurrentVersion,
		Delegates:  delegates,
		Visibility: doc.Public{},
	}
}

func TestMachineAppliesOnQuorum(t *testing.T) {
	ctx := context.Background()
	delegate := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)

	headOid := oid(t, 1)
	transport := &fakeTransport{
		refs: map[ids.RefName]ids.Oid{
			namespacedRef(delegate, "refs/rad/id"):      oid(t, 2),
			namespacedRef(delegate, "refs/rad/sigrefs"): oid(t, 3),
			namespacedRef(delegate, "refs/heads/main"):  headOid,
		},
		manifest: &sigrefs.Manifest{
			Signer: delegate,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/main": headOid},
		},
	}

	localDoc := oneDelegateDoc(t, delegate)
	m := NewMachine(overlay, live, localDoc, false)

	primary := RemoteSpec{Node: delegate, Transport: transport, IsDelegate: true}
	outcome, err := m.Fetch(ctx, primary, []RemoteSpec{primary}, nil)
	if err != nil {
		t.Fatal(err)
	}
	success, ok := outcome.(Success)
	if !ok {
		t.Fatalf("outcome = %#v, want Success", outcome)
	}
	if len(success.Applied) == 0 {
		t.Error("expected at least one applied ref")
	}
	gotOid, found, err := live.Ref(ctx, namespacedRef(delegate, "refs/heads/main"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || !gotOid.Equal(headOid) {
		t.Errorf("live store not updated: found=%v oid=%v", found, gotOid)
	}
}

func TestMachineFailsBelowThreshold(t *testing.T) {
	ctx := context.Background()
	delegate := genNode(t)
	other := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)

	headOid := oid(t, 1)
	transport := &fakeTransport{
		refs: map[ids.RefName]ids.Oid{
			namespacedRef(delegate, "refs/rad/id"):      oid(t, 2),
			namespacedRef(delegate, "refs/rad/sigrefs"): oid(t, 3),
			namespacedRef(delegate, "refs/heads/main"):  headOid,
		},
		manifest: &sigrefs.Manifest{
			Signer: delegate,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/main": headOid},
		},
	}

	// Two delegates named but only one's manifest is actually fetched
	// here, so quorum (len(Delegates) == 2) can't be reached.
	localDoc := oneDelegateDoc(t, delegate, other)
	m := NewMachine(overlay, live, localDoc, false)

	primary := RemoteSpec{Node: delegate, Transport: transport, IsDelegate: true}
	outcome, err := m.Fetch(ctx, primary, []RemoteSpec{primary}, nil)
	if err != nil {
		t.Fatal(err)
	}
	failed, ok := outcome.(Failed)
	if !ok {
		t.Fatalf("outcome = %#v, want Failed", outcome)
	}
	if failed.Threshold != 2 {
		t.Errorf("threshold = %d, want 2", failed.Threshold)
	}

	if _, found, _ := live.Ref(ctx, namespacedRef(delegate, "refs/heads/main")); found {
		t.Error("live store should be untouched on quorum failure")
	}
}

func TestMachineDetectsMismatchedRef(t *testing.T) {
	ctx := context.Background()
	delegate := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)

	signedOid := oid(t, 1)
	gotOid := oid(t, 9) // what actually got fetched differs from what was signed
	transport := &fakeTransport{
		refs: map[ids.RefName]ids.Oid{
			namespacedRef(delegate, "refs/rad/id"):      oid(t, 2),
			namespacedRef(delegate, "refs/rad/sigrefs"): oid(t, 3),
			namespacedRef(delegate, "refs/heads/main"):  gotOid,
		},
		manifest: &sigrefs.Manifest{
			Signer: delegate,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/main": signedOid},
		},
	}
	localDoc := oneDelegateDoc(t, delegate)
	m := NewMachine(overlay, live, localDoc, false)

	primary := RemoteSpec{Node: delegate, Transport: transport, IsDelegate: true}
	outcome, err := m.Fetch(ctx, primary, []RemoteSpec{primary}, nil)
	if err != nil {
		t.Fatal(err)
	}
	failed, ok := outcome.(Failed)
	if !ok {
		t.Fatalf("outcome = %#v, want Failed (mismatched ref should prune the only delegate)", outcome)
	}
	foundMismatch := false
	for _, v := range failed.Validations {
		for _, d := range v.Discrepancies {
			if _, ok := d.(MismatchedRef); ok {
				foundMismatch = true
			}
		}
	}
	if !foundMismatch {
		t.Error("expected a MismatchedRef discrepancy")
	}
}

func TestMachineDetectsUnsignedExtraRef(t *testing.T) {
	ctx := context.Background()
	delegate := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)

	mainOid := oid(t, 1)
	transport := &fakeTransport{
		refs: map[ids.RefName]ids.Oid{
			namespacedRef(delegate, "refs/rad/id"):      oid(t, 2),
			namespacedRef(delegate, "refs/rad/sigrefs"): oid(t, 3),
			namespacedRef(delegate, "refs/heads/main"):  mainOid,
			namespacedRef(delegate, "refs/heads/extra"): oid(t, 4), // not signed by the manifest
		},
		manifest: &sigrefs.Manifest{
			Signer: delegate,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/main": mainOid},
		},
	}
	localDoc := oneDelegateDoc(t, delegate)
	m := NewMachine(overlay, live, localDoc, false)

	primary := RemoteSpec{Node: delegate, Transport: transport, IsDelegate: true}
	outcome, err := m.Fetch(ctx, primary, []RemoteSpec{primary}, nil)
	if err != nil {
		t.Fatal(err)
	}
	failed, ok := outcome.(Failed)
	if !ok {
		t.Fatalf("outcome = %#v, want Failed (extra ref should prune the only delegate)", outcome)
	}
	foundUnsigned := false
	for _, v := range failed.Validations {
		for _, d := range v.Discrepancies {
			u, ok := d.(UnsignedRef)
			if !ok {
				continue
			}
			if u.Ref == namespacedRef(delegate, "refs/heads/extra") {
				foundUnsigned = true
				continue
			}
			t.Errorf("unexpected UnsignedRef for %s (refs/rad/id and refs/rad/sigrefs must not count)", u.Ref)
		}
	}
	if !foundUnsigned {
		t.Error("expected an UnsignedRef discrepancy for the extra ref")
	}
}

func TestMachineAbortsOnDivergedDelegate(t *testing.T) {
	ctx := context.Background()
	delegate := genNode(t)
	live := refdb.NewMemStore()

	liveSigrefsOid := oid(t, 5)
	divergedOid := oid(t, 6) // unrelated to liveSigrefsOid: neither is an ancestor of the other
	if err := live.Apply(ctx, map[ids.RefName]ids.Oid{
		namespacedRef(delegate, "refs/rad/sigrefs"): liveSigrefsOid,
	}); err != nil {
		t.Fatal(err)
	}
	overlay := refdb.NewOverlay(live)

	transport := &fakeTransport{
		refs: map[ids.RefName]ids.Oid{
			namespacedRef(delegate, "refs/rad/id"):      oid(t, 2),
			namespacedRef(delegate, "refs/rad/sigrefs"): divergedOid,
		},
		manifest: &sigrefs.Manifest{Signer: delegate, Refs: map[ids.RefName]ids.Oid{}},
	}
	localDoc := oneDelegateDoc(t, delegate)
	m := NewMachine(overlay, live, localDoc, false)

	primary := RemoteSpec{Node: delegate, Transport: transport, IsDelegate: true}
	_, err := m.Fetch(ctx, primary, []RemoteSpec{primary}, nil)
	if err == nil {
		t.Fatal("expected diverged-delegate fetch to hard-abort with an error")
	}
}

package fetch

import (
	"context"
	"testing"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/refdb"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

func TestValidateRemoteMissingRadSigRefs(t *testing.T) {
	node := genNode(t)
	r := &remoteState{node: node, isDelegate: true}
	v := validateRemote(context.Background(), refdb.NewOverlay(refdb.NewMemStore()), "", r)
	if len(v.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %v, want exactly one MissingRadSigRefs", v.Discrepancies)
	}
	if _, ok := v.Discrepancies[0].(MissingRadSigRefs); !ok {
		t.Errorf("discrepancy = %#v, want MissingRadSigRefs", v.Discrepancies[0])
	}
}

func TestValidateRemoteMissingRef(t *testing.T) {
	ctx := context.Background()
	node := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)
	// manifest signs refs/heads/main but it was never actually staged
	r := &remoteState{
		node: node,
		manifest: &sigrefs.Manifest{
			Signer: node,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/main": oid(t, 1)},
		},
	}
	v := validateRemote(ctx, overlay, "", r)
	if len(v.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %v, want exactly one MissingRef", v.Discrepancies)
	}
	if _, ok := v.Discrepancies[0].(MissingRef); !ok {
		t.Errorf("discrepancy = %#v, want MissingRef", v.Discrepancies[0])
	}
}

func TestValidateRemoteRequiresDefaultBranchForDelegate(t *testing.T) {
	ctx := context.Background()
	node := genNode(t)
	live := refdb.NewMemStore()
	overlay := refdb.NewOverlay(live)
	sideOid := oid(t, 1)
	overlay.Stage(namespacedRef(node, "refs/heads/side"), sideOid)

	r := &remoteState{
		node:       node,
		isDelegate: true,
		manifest: &sigrefs.Manifest{
			Signer: node,
			Refs:   map[ids.RefName]ids.Oid{"refs/heads/side": sideOid},
		},
	}
	v := validateRemote(ctx, overlay, "refs/heads/main", r)
	foundMissingDefault := false
	for _, d := range v.Discrepancies {
		if m, ok := d.(MissingRef); ok && m.Ref == namespacedRef(node, "refs/heads/main") {
			foundMissingDefault = true
		}
	}
	if !foundMissingDefault {
		t.Error("delegate with a project payload must sign the default branch")
	}
}

func TestPruneByAncestryDropsBehindNonDelegate(t *testing.T) {
	ctx := context.Background()
	node := genNode(t)
	live := refdb.NewMemStore()

	oldOid := oid(t, 1)
	newOid := refdb.Fork(live, oldOid, 0x01)
	if err := live.Apply(ctx, map[ids.RefName]ids.Oid{
		namespacedRef(node, "refs/rad/sigrefs"): newOid,
	}); err != nil {
		t.Fatal(err)
	}
	overlay := refdb.NewOverlay(live)
	overlay.Stage(namespacedRef(node, "refs/rad/sigrefs"), oldOid) // behind what's live

	r := &remoteState{node: node, isDelegate: false, manifest: &sigrefs.Manifest{Signer: node}}
	kept, err := pruneByAncestry(ctx, live, overlay, []*remoteState{r})
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %v, want the behind non-delegate pruned", kept)
	}
	if _, found := overlay.Staged()[namespacedRef(node, "refs/rad/sigrefs")]; found {
		t.Error("pruned remote's staged refs should be dropped")
	}
}

func TestPruneByAncestryKeepsAheadDelegate(t *testing.T) {
	ctx := context.Background()
	node := genNode(t)
	live := refdb.NewMemStore()

	oldOid := oid(t, 1)
	if err := live.Apply(ctx, map[ids.RefName]ids.Oid{
		namespacedRef(node, "refs/rad/sigrefs"): oldOid,
	}); err != nil {
		t.Fatal(err)
	}
	newOid := refdb.Fork(live, oldOid, 0x01)
	overlay := refdb.NewOverlay(live)
	overlay.Stage(namespacedRef(node, "refs/rad/sigrefs"), newOid) // ahead of live

	r := &remoteState{node: node, isDelegate: true, manifest: &sigrefs.Manifest{Signer: node}}
	kept, err := pruneByAncestry(ctx, live, overlay, []*remoteState{r})
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 {
		t.Errorf("kept = %v, want the ahead delegate retained", kept)
	}
}

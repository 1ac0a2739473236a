package ids

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
)

func mustNodeId(t *testing.T) NodeId {
	t.Helper()
	_, pub, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		t.Fatal(err)
	}
	nid, err := NewNodeId(pub)
	if err != nil {
		t.Fatal(err)
	}
	return nid
}

func TestNodeIdRoundTrip(t *testing.T) {
	nid := mustNodeId(t)
	b := nid.Bytes()
	got, err := ParseNodeId(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(nid) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestNodeIdCompareAntisymmetric(t *testing.T) {
	a := mustNodeId(t)
	b := mustNodeId(t)
	if a.Compare(b) == 0 && !a.Equal(b) {
		t.Fatalf("compare==0 but not equal")
	}
	if a.Compare(b) != -b.Compare(a) && a.Compare(b)*b.Compare(a) > 0 {
		t.Fatalf("compare not antisymmetric: %d vs %d", a.Compare(b), b.Compare(a))
	}
}

func TestRepoIdRoundTrip(t *testing.T) {
	rid, err := NewRepoId([]byte("some root commit bytes"))
	if err != nil {
		t.Fatal(err)
	}
	s := rid.String()
	got, err := ParseRepoId(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(rid) {
		t.Fatalf("repo id round trip mismatch")
	}
}

func TestOidLengths(t *testing.T) {
	if _, err := NewOid(make([]byte, 20)); err != nil {
		t.Fatalf("sha1-length oid rejected: %v", err)
	}
	if _, err := NewOid(make([]byte, 32)); err != nil {
		t.Fatalf("sha256-length oid rejected: %v", err)
	}
	if _, err := NewOid(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for bad length")
	}
}

func TestRefNameValidation(t *testing.T) {
	valid := []string{"refs/heads/master", "refs/rad/id", "refs/cobs/issue/abc123"}
	for _, v := range valid {
		if _, err := NewRefName(v); err != nil {
			t.Errorf("expected %q valid, got %v", v, err)
		}
	}
	invalid := []string{"", "refs/heads//x", "/refs/heads/x", "refs/heads/x/", "refs/../etc", "refs/he ad"}
	for _, v := range invalid {
		if _, err := NewRefName(v); err == nil {
			t.Errorf("expected %q invalid", v)
		}
	}
}

func TestNamespacedRoundTrip(t *testing.T) {
	nid := mustNodeId(t)
	ref, _ := NewRefName("refs/heads/master")
	ns := Namespaced(nid, ref)
	prefix, rest, ok := SplitNamespace(ns)
	if !ok {
		t.Fatalf("expected namespaced split to succeed")
	}
	if prefix != nid.String() {
		t.Errorf("prefix = %q, want %q", prefix, nid.String())
	}
	if rest != ref {
		t.Errorf("rest = %q, want %q", rest, ref)
	}
}

func TestIsReplicated(t *testing.T) {
	cases := map[RefName]bool{
		"refs/heads/master":  true,
		"refs/rad/sigrefs":   true,
		"refs/drafts/x":      false,
		"refs/tmp/fetchhead": false,
	}
	for ref, want := range cases {
		if got := IsReplicated(ref); got != want {
			t.Errorf("IsReplicated(%q) = %v, want %v", ref, got, want)
		}
	}
}

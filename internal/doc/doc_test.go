package doc

import (
	"encoding/json"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

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

func projectPayload(t *testing.T, branch string) map[string]json.RawMessage {
	t.Helper()
	p := ProjectPayload{Name: "acme", DefaultBranch: branch}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]json.RawMessage{ProjectPayloadId: raw}
}

func TestParseV2RoundTrip(t *testing.T) {
	a, b := genNode(t), genNode(t)
	raw := RawDoc{
		Version:   2,
		Payload:   projectPayload(t, "main"),
		Delegates: [][]byte{a.Bytes(), b.Bytes()},
		Visibility: RawVisibility{Tag: "public"},
		Rules: []RawRule{{
			Pattern:   "refs/heads/main",
			AllowTag:  "delegates",
			Threshold: 2,
		}},
	}

	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	back, err := d.toRaw()
	if err != nil {
		t.Fatalf("toRaw: %v", err)
	}
	again, err := Parse(back)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Delegates) != 2 {
		t.Fatalf("delegate count changed across round trip")
	}
}

func TestMigrateV1ToV2(t *testing.T) {
	a, b, c := genNode(t), genNode(t), genNode(t)
	threshold := 2
	raw := RawDoc{
		Version:    1,
		Payload:    projectPayload(t, "master"),
		Delegates:  [][]byte{a.Bytes(), b.Bytes(), c.Bytes()},
		Visibility: RawVisibility{Tag: "public"},
		Threshold:  &threshold,
	}

	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Version != CurrentVersion {
		t.Fatalf("migrated doc version = %d, want %d", d.Version, CurrentVersion)
	}
	rule, ok := d.RuleFor("refs/heads/master")
	if !ok {
		t.Fatalf("expected synthesized default-branch rule")
	}
	if rule.Threshold != 2 {
		t.Errorf("rule threshold = %d, want 2", rule.Threshold)
	}
	if _, ok := rule.Allow.(AllowDelegates); !ok {
		t.Errorf("rule allow = %T, want AllowDelegates", rule.Allow)
	}
}

func TestValidateRejectsDuplicateDelegates(t *testing.T) {
	a := genNode(t)
	d := &Doc{
		Delegates:  []ids.NodeId{a, a},
		Visibility: Public{},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for duplicate delegates")
	}
}

func TestValidateRejectsRadRulePattern(t *testing.T) {
	a := genNode(t)
	d := &Doc{
		Delegates:  []ids.NodeId{a},
		Visibility: Public{},
		Rules: []CanonicalRule{{
			Pattern:   "refs/rad/id",
			Allow:     AllowDelegates{},
			Threshold: 1,
		}},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for rule targeting refs/rad/*")
	}
}

func TestValidateRejectsThresholdTooHigh(t *testing.T) {
	a := genNode(t)
	d := &Doc{
		Delegates:  []ids.NodeId{a},
		Visibility: Public{},
		Rules: []CanonicalRule{{
			Pattern:   "refs/heads/main",
			Allow:     AllowDelegates{},
			Threshold: 5,
		}},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for threshold exceeding delegate count")
	}
}

func TestRuleForPicksMostSpecific(t *testing.T) {
	a := genNode(t)
	d := &Doc{
		Delegates:  []ids.NodeId{a},
		Visibility: Public{},
		Rules: []CanonicalRule{
			{Pattern: "refs/heads/*", Allow: AllowDelegates{}, Threshold: 1},
			{Pattern: "refs/heads/release/*", Allow: AllowDelegates{}, Threshold: 1},
		},
	}
	r, ok := d.RuleFor("refs/heads/release/v1")
	if !ok {
		t.Fatal("expected a match")
	}
	if r.Pattern != "refs/heads/release/*" {
		t.Errorf("matched %q, want the more specific pattern", r.Pattern)
	}
}

package session

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/wire"
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

func TestNewSessionAssignsDistinctLogIDs(t *testing.T) {
	a := New(nil, Outbound, false, 1)
	b := New(nil, Outbound, false, 2)

	if a.LogID == "" || b.LogID == "" {
		t.Fatal("LogID should be populated")
	}
	if a.LogID == b.LogID {
		t.Fatal("distinct sessions should get distinct LogIDs")
	}
	if _, ok := a.State.(Initial); !ok {
		t.Fatalf("new session should start Initial, got %T", a.State)
	}
	if a.ResourceID != 1 || b.ResourceID != 2 {
		t.Fatal("ResourceID should be preserved from the constructor argument, independent of LogID")
	}
}

func TestNegotiateFromInitialSucceeds(t *testing.T) {
	node := genNode(t)
	bundle := InitializeBundle{Node: node, Version: wire.ProtocolVersion}
	neg, err := Negotiate(Initial{}, bundle, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !neg.Remote.Equal(node) {
		t.Error("negotiated remote mismatch")
	}
}

func TestNegotiateRejectsVersionMismatch(t *testing.T) {
	bundle := InitializeBundle{Node: genNode(t), Version: wire.ProtocolVersion + 1}
	_, err := Negotiate(Initial{}, bundle, time.Now())
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestNegotiateRejectsSecondInitialize(t *testing.T) {
	bundle := InitializeBundle{Node: genNode(t), Version: wire.ProtocolVersion}
	already := Negotiated{Remote: genNode(t)}
	_, err := Negotiate(already, bundle, time.Now())
	if err == nil {
		t.Fatal("expected rejection of Initialize outside Initial")
	}
}

func TestDisconnectReasonTransience(t *testing.T) {
	cases := []struct {
		reason    DisconnectReason
		transient bool
	}{
		{Connection{}, true},
		{Connection{PersistentFailure: true}, false},
		{Misbehavior{Detail: "bad frame"}, false},
		{Conflict{}, false},
		{SelfConnection{}, false},
		{User{}, false},
		{StaleConnection{}, true},
	}
	for _, c := range cases {
		if got := c.reason.Transient(); got != c.transient {
			t.Errorf("%T.Transient() = %v, want %v", c.reason, got, c.transient)
		}
	}
}

func TestLivenessPingPong(t *testing.T) {
	now := time.Now()
	if ShouldPing(now, now.Add(KeepAliveDelta-time.Second)) {
		t.Error("should not ping before KeepAliveDelta elapses")
	}
	if !ShouldPing(now, now.Add(KeepAliveDelta)) {
		t.Error("should ping once KeepAliveDelta elapses")
	}

	if AcceptPing(Ping{Zeroes: MaxPongZeroes + 1}) {
		t.Error("oversized ping request should be rejected")
	}
	if !AcceptPing(Ping{Zeroes: MaxPongZeroes}) {
		t.Error("ping request at the boundary should be accepted")
	}

	ps := PingState{Outstanding: true, SentAt: now}
	if IsStale(ps, now.Add(StaleConnectionTimeout-time.Second)) {
		t.Error("should not be stale before the timeout elapses")
	}
	if !IsStale(ps, now.Add(StaleConnectionTimeout)) {
		t.Error("should be stale once the timeout elapses")
	}
}

func TestReconnectTrackerCapsAttempts(t *testing.T) {
	tr := NewReconnectTracker()
	peer := "peer-a"

	for i := 0; i < MaxConnectionAttempts; i++ {
		if !tr.ShouldReconnect(peer, Connection{}) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if tr.ShouldReconnect(peer, Connection{}) {
		t.Fatal("attempt beyond MaxConnectionAttempts should be refused")
	}
}

func TestReconnectTrackerIgnoresNonTransient(t *testing.T) {
	tr := NewReconnectTracker()
	if tr.ShouldReconnect("peer-a", Conflict{}) {
		t.Fatal("non-transient reason should never reconnect")
	}
}

func TestConflictResolutionPrefersGreaterNodeOutbound(t *testing.T) {
	// Construct two NodeIds and determine which compares greater so the
	// test is independent of key generation order.
	n1, n2 := genNode(t), genNode(t)
	local, remote := n1, n2
	if local.Compare(remote) < 0 {
		local, remote = remote, local // local is now the greater of the two
	}

	outbound := Candidate{Direction: Outbound, ResourceID: 1}
	inbound := Candidate{Direction: Inbound, ResourceID: 2}

	winner := Resolve(local, remote, outbound, inbound)
	if winner.Direction != Outbound {
		t.Errorf("expected local's outbound session to survive when local > remote")
	}
}

func TestConflictResolutionSameDirectionPrefersEarlier(t *testing.T) {
	local, remote := genNode(t), genNode(t)
	earlier := Candidate{Direction: Outbound, ResourceID: 1}
	later := Candidate{Direction: Outbound, ResourceID: 2}

	winner := Resolve(local, remote, earlier, later)
	if winner.ResourceID != 1 {
		t.Errorf("expected earlier resource id to survive same-direction collision")
	}
}

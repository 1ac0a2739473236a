package orchestrator

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"pgregory.net/rapid"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// rapidNode generates a fresh Ed25519 node id. Only n (the candidate
// count) and the per-step success/failure choices need to vary across
// rapid's cases; the node identities themselves just need to be
// distinct, so they're drawn from crypto/rand rather than rapid.
func rapidNode(t *rapid.T) ids.NodeId {
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

// TestFetcherStepResultInvariants drives a Fetcher through arbitrary
// success/failure sequences over a random candidate pool and checks the
// invariants that must hold no matter the order of events: once a Break
// is returned every later step also returns Break with the same outcome,
// and the tracker never records more successes than candidates given.
func TestFetcherStepResultInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := rapidNode(t)
		n := rapid.IntRange(1, 8).Draw(t, "n")
		candidates := make([]ids.NodeId, n)
		for i := range candidates {
			candidates[i] = rapidNode(t)
		}
		lower := rapid.IntRange(1, n).Draw(t, "lower")

		f, err := New(local, nil, MustReach{N: lower}, candidates)
		if err != nil {
			t.Fatal(err)
		}

		broke := false
		var brokeOutcome SuccessfulOutcome
		succeeded := 0

		for i := 0; i < n; i++ {
			node, ok := f.NextNode()
			if !ok {
				break
			}
			succeed := rapid.Bool().Draw(t, "succeed")

			var result StepResult
			if succeed {
				result = f.recordSuccess(node)
				succeeded++
			} else {
				result = f.recordFailure(node, "simulated")
			}

			switch r := result.(type) {
			case Break:
				if broke {
					if r.Outcome != brokeOutcome {
						t.Fatalf("Break outcome changed after latching: %v -> %v", brokeOutcome, r.Outcome)
					}
				}
				broke = true
				brokeOutcome = r.Outcome
			case Continue:
				if broke {
					t.Fatalf("got Continue after a prior Break")
				}
			}

			if succeeded > n {
				t.Fatalf("recorded more successes (%d) than candidates (%d)", succeeded, n)
			}
		}
	})
}

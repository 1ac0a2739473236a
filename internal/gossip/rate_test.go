package gossip

import (
	"testing"

	"github.com/rhizome-dev/rhizome/internal/routing"
)

func newRateTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	signer := newTestSigner(t)
	rt := routing.NewTable(100, 0)
	ab, err := routing.NewAddressBook(t.TempDir() + "/addressbook.json")
	if err != nil {
		t.Fatal(err)
	}
	return NewService(cfg, signer.NodeId(), signer, rt, ab, nil, nil, nil)
}

func TestDefaultAcceptRateLimitsPerAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnAttemptRateLimit = 1
	cfg.ConnAttemptRateBurst = 2
	svc := newRateTestService(t, cfg)

	if !svc.Accepted("1.2.3.4") {
		t.Fatal("first attempt should be admitted")
	}
	if !svc.Accepted("1.2.3.4") {
		t.Fatal("second attempt should be admitted within burst")
	}
	if svc.Accepted("1.2.3.4") {
		t.Fatal("third immediate attempt should exceed the burst")
	}
	// A different source address has its own bucket.
	if !svc.Accepted("5.6.7.8") {
		t.Fatal("a distinct address should not share the exhausted bucket")
	}
}

func TestDefaultAcceptDisabledWhenLimitNonPositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnAttemptRateLimit = 0
	svc := newRateTestService(t, cfg)

	for i := 0; i < 10; i++ {
		if !svc.Accepted("1.2.3.4") {
			t.Fatalf("attempt %d should be admitted with rate limiting disabled", i)
		}
	}
}

func TestRelayAllowedRateLimitsPerSigner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelayRateLimit = 1
	cfg.RelayRateBurst = 1
	svc := newRateTestService(t, cfg)

	announcer := newTestSigner(t).NodeId()
	if !svc.relayAllowed(announcer) {
		t.Fatal("first announcement from a signer should be allowed")
	}
	if svc.relayAllowed(announcer) {
		t.Fatal("second immediate announcement should exceed the burst")
	}

	other := newTestSigner(t).NodeId()
	if !svc.relayAllowed(other) {
		t.Fatal("a distinct signer should have its own bucket")
	}
}

func TestRelayAllowedDisabledWhenLimitNonPositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelayRateLimit = 0
	svc := newRateTestService(t, cfg)

	announcer := newTestSigner(t).NodeId()
	for i := 0; i < 10; i++ {
		if !svc.relayAllowed(announcer) {
			t.Fatalf("attempt %d should be allowed with relay rate limiting disabled", i)
		}
	}
}

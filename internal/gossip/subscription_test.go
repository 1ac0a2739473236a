package gossip

import (
	"testing"
	"time"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

func TestSubscriptionMatchesWithinWindow(t *testing.T) {
	repo := genRepo(t, "repo-a")
	other := genRepo(t, "repo-b")
	since := time.Now().Add(-time.Hour)
	until := time.Now().Add(time.Hour)

	sub := NewSubscription([]ids.RepoId{repo}, since, until)

	if !sub.Matches(repo, time.Now()) {
		t.Error("expected subscribed repo within window to match")
	}
	if sub.Matches(other, time.Now()) {
		t.Error("unsubscribed repo should not match")
	}
	if sub.Matches(repo, since.Add(-time.Minute)) {
		t.Error("timestamp before Since should not match")
	}
	if sub.Matches(repo, until) {
		t.Error("timestamp at Until (exclusive) should not match")
	}
}

func TestSubscriptionUnboundedUntil(t *testing.T) {
	repo := genRepo(t, "repo-a")
	sub := NewSubscription([]ids.RepoId{repo}, time.Now().Add(-time.Hour), time.Time{})
	if !sub.Matches(repo, time.Now().Add(24*time.Hour)) {
		t.Error("zero Until should mean unbounded")
	}
}

func TestSubscriptionRoundTripsThroughRawEncoding(t *testing.T) {
	repo := genRepo(t, "repo-a")
	since := time.Unix(time.Now().Unix()-3600, 0)
	sub := NewSubscription([]ids.RepoId{repo}, since, time.Time{})

	raw, err := sub.marshalRaw()
	if err != nil {
		t.Fatal(err)
	}
	got, err := subscriptionFromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Matches(repo, time.Now()) {
		t.Error("round-tripped subscription should still match its repo")
	}
	if !got.Since.Equal(sub.Since) {
		t.Errorf("since = %v, want %v", got.Since, sub.Since)
	}
}

package gossip

import (
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// subscriptionFilterBits sizes the bloom filter used to encode a peer's
// repo subscription on the wire; false positives just mean we relay a
// few announcements the peer didn't strictly ask for.
const subscriptionFilterBits = 1 << 16

const subscriptionFilterHashes = 4

// Subscription is what a peer tells us it wants to hear about: a bloom
// filter over repo ids, plus a half-open time window [Since, Until).
// An empty Until means "no upper bound".
type Subscription struct {
	filter *bitset.BitSet
	Since  time.Time
	Until  time.Time
}

// NewSubscription builds a subscription over repos, valid from since
// until until (zero value for "unbounded").
func NewSubscription(repos []ids.RepoId, since, until time.Time) *Subscription {
	s := &Subscription{
		filter: bitset.New(subscriptionFilterBits),
		Since:  since,
		Until:  until,
	}
	for _, r := range repos {
		s.add(r)
	}
	return s
}

func (s *Subscription) add(repo ids.RepoId) {
	for _, h := range repoHashes(repo) {
		s.filter.Set(h % subscriptionFilterBits)
	}
}

// Matches reports whether repo is (possibly) included in the
// subscription's filter and ts falls within its time window.
func (s *Subscription) Matches(repo ids.RepoId, ts time.Time) bool {
	if ts.Before(s.Since) {
		return false
	}
	if !s.Until.IsZero() && !ts.Before(s.Until) {
		return false
	}
	for _, h := range repoHashes(repo) {
		if !s.filter.Test(h % subscriptionFilterBits) {
			return false
		}
	}
	return true
}

// repoHashes derives subscriptionFilterHashes independent bit positions
// for repo out of its own content-addressed bytes, double-hashing in
// the Kirsch-Mitzenmacher style rather than invoking a fresh hash
// function per slot.
func repoHashes(repo ids.RepoId) []uint {
	b := repo.Bytes()
	var h1, h2 uint64
	for i, by := range b {
		h1 = h1*31 + uint64(by)
		h2 = h2*37 + uint64(by) + uint64(i)
	}
	out := make([]uint, subscriptionFilterHashes)
	for i := 0; i < subscriptionFilterHashes; i++ {
		out[i] = uint(h1 + uint64(i)*h2)
	}
	return out
}

// rawSubscription is the canonical CBOR form exchanged during handshake.
type rawSubscription struct {
	Filter []byte `cbor:"filter"`
	Since  int64  `cbor:"since"`
	Until  int64  `cbor:"until"`
}

func (s *Subscription) marshalRaw() (rawSubscription, error) {
	bits, err := s.filter.MarshalBinary()
	if err != nil {
		return rawSubscription{}, err
	}
	var until int64
	if !s.Until.IsZero() {
		until = s.Until.Unix()
	}
	return rawSubscription{Filter: bits, Since: s.Since.Unix(), Until: until}, nil
}

func subscriptionFromRaw(r rawSubscription) (*Subscription, error) {
	filter := bitset.New(subscriptionFilterBits)
	if err := filter.UnmarshalBinary(r.Filter); err != nil {
		return nil, err
	}
	s := &Subscription{filter: filter, Since: time.Unix(r.Since, 0)}
	if r.Until != 0 {
		s.Until = time.Unix(r.Until, 0)
	}
	return s, nil
}

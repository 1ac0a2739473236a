package session

// MaxConnectionAttempts bounds persistent-peer redial attempts before
// the peer is dropped entirely.
const MaxConnectionAttempts = 3

// ReconnectTracker counts redial attempts per persistent peer.
type ReconnectTracker struct {
	attempts map[string]int
}

// NewReconnectTracker returns an empty tracker.
func NewReconnectTracker() *ReconnectTracker {
	return &ReconnectTracker{attempts: make(map[string]int)}
}

// ShouldReconnect reports whether a persistent peer whose session ended
// with reason should be re-dialed, and if so increments its attempt
// counter. A non-transient reason, or a peer that has already exhausted
// MaxConnectionAttempts, returns false.
func (t *ReconnectTracker) ShouldReconnect(peerKey string, reason DisconnectReason) bool {
	if !reason.Transient() {
		delete(t.attempts, peerKey)
		return false
	}
	if t.attempts[peerKey] >= MaxConnectionAttempts {
		delete(t.attempts, peerKey)
		return false
	}
	t.attempts[peerKey]++
	return true
}

// Reset clears a peer's attempt counter, e.g. after a successful
// reconnect.
func (t *ReconnectTracker) Reset(peerKey string) {
	delete(t.attempts, peerKey)
}

// Attempts returns the current attempt count for peerKey.
func (t *ReconnectTracker) Attempts(peerKey string) int {
	return t.attempts[peerKey]
}

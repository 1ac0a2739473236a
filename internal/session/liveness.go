package session

import "time"

// KeepAliveDelta is the idle period after which a peer receives a Ping.
const KeepAliveDelta = 30 * time.Second

// StaleConnectionTimeout is how long a Ping may go unanswered before the
// session is terminated.
const StaleConnectionTimeout = 60 * time.Second

// MaxPongZeroes bounds the zero-padding a Ping may request in its
// matching Pong; requests above this are silently ignored rather than
// answered, so a malicious peer can't use us as a bandwidth amplifier.
const MaxPongZeroes = 1 << 16

// Ping is the liveness probe sent after KeepAliveDelta of inactivity.
// Zeroes asks the peer to pad its Pong to that many zero bytes, within
// MaxPongZeroes.
type Ping struct {
	Zeroes uint32
}

// Pong answers a Ping with the requested zero padding.
type Pong struct {
	Zeroes uint32
}

// ShouldPing reports whether a session idle since lastActive should be
// sent a Ping as of now.
func ShouldPing(lastActive, now time.Time) bool {
	return now.Sub(lastActive) >= KeepAliveDelta
}

// AcceptPing reports whether an incoming Ping should be answered: a
// request for more than MaxPongZeroes is dropped silently, not just
// truncated, since responding at all to an oversized request still
// serves as an amplification oracle.
func AcceptPing(p Ping) bool {
	return p.Zeroes <= MaxPongZeroes
}

// IsStale reports whether an outstanding Ping sent at sentAt has gone
// unanswered long enough (as of now) to terminate the session.
func IsStale(ps PingState, now time.Time) bool {
	return ps.Outstanding && now.Sub(ps.SentAt) >= StaleConnectionTimeout
}

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/rhizome-dev/rhizome/internal/wire"
)

var (
	// ErrProtocolVersionMismatch means the peer's declared version
	// doesn't match ours.
	ErrProtocolVersionMismatch = errors.New("session: protocol version mismatch")

	// ErrUnexpectedMessage means an Initialize arrived while the session
	// was no longer in Initial, such as a second Initialize after the
	// first.
	ErrUnexpectedMessage = errors.New("session: unexpected Initialize message")
)

// Negotiate applies an incoming InitializeBundle to a session currently
// in Initial, returning the resulting Negotiated state or a misbehavior
// error. Both cases are disconnect offenses at the caller's discretion —
// Negotiate itself only classifies, it does not disconnect.
func Negotiate(current State, bundle InitializeBundle, now time.Time) (Negotiated, error) {
	if _, ok := current.(Initial); !ok {
		return Negotiated{}, fmt.Errorf("%w: received Initialize outside Initial", ErrUnexpectedMessage)
	}
	if bundle.Version != wire.ProtocolVersion {
		return Negotiated{}, fmt.Errorf("%w: peer=%d local=%d", ErrProtocolVersionMismatch, bundle.Version, wire.ProtocolVersion)
	}
	return Negotiated{Remote: bundle.Node, Since: now, Addrs: bundle.Addresses}, nil
}

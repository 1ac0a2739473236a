package gossip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/session"
	"github.com/rhizome-dev/rhizome/internal/wire"
)

// rawAnnouncement is the wire envelope Send/Submit exchange on the
// reserved gossip stream: the same fields as Announcement, but with
// Signer reduced to raw bytes so it round-trips through canonicalEncMode
// without a NodeId-aware codec.
type rawAnnouncement struct {
	Signer    []byte     `cbor:"signer"`
	Message   rawMessage `cbor:"message"`
	Signature []byte     `cbor:"signature"`
}

// controlMessage is the closed set of payloads exchanged on the
// reserved control stream. Only liveness probes travel this path today;
// Initialize bundles are handled by session.Negotiate before a
// sessionPeer exists at all.
type controlMessage struct {
	Kind string        `cbor:"kind"`
	Ping *session.Ping `cbor:"ping,omitempty"`
	Pong *session.Pong `cbor:"pong,omitempty"`
}

// sessionPeer adapts a negotiated C2 session.Session, transported over a
// C1 wire.Muxer, to the PeerSession interface the reactor (C3) drives.
// It's the concrete type SetDialer and an accepting listener produce;
// tests use their own fakes instead.
type sessionPeer struct {
	mux  *wire.Muxer
	peer ids.NodeId

	mu   sync.Mutex
	sess *session.Session
}

// newSessionPeer wraps an already-negotiated session and the muxer
// carrying it.
func newSessionPeer(peer ids.NodeId, sess *session.Session, mux *wire.Muxer) *sessionPeer {
	return &sessionPeer{mux: mux, peer: peer, sess: sess}
}

func (p *sessionPeer) Peer() ids.NodeId { return p.peer }

// Send encodes ann as a rawAnnouncement and writes it on the reserved
// gossip stream.
func (p *sessionPeer) Send(ctx context.Context, a *Announcement) error {
	raw, err := toRawMessage(a.Message)
	if err != nil {
		return fmt.Errorf("gossip: encode announcement: %w", err)
	}
	env := rawAnnouncement{Signer: a.Signer.Bytes(), Message: raw, Signature: a.Signature}
	body, err := canonicalEncMode.Marshal(env)
	if err != nil {
		return fmt.Errorf("gossip: marshal announcement: %w", err)
	}
	if err := p.mux.SendGossip(ctx, body); err != nil {
		return err
	}
	p.touch()
	return nil
}

func (p *sessionPeer) Direction() session.Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.Direction
}

func (p *sessionPeer) ResourceID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.ResourceID
}

func (p *sessionPeer) LastActive() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.LastActive
}

// Ping sends a liveness probe on the control stream and records it as
// outstanding on the underlying session's Negotiated state.
func (p *sessionPeer) Ping(ctx context.Context) error {
	body, err := canonicalEncMode.Marshal(controlMessage{Kind: "ping", Ping: &session.Ping{}})
	if err != nil {
		return fmt.Errorf("gossip: marshal ping: %w", err)
	}
	if err := p.mux.SendControl(ctx, body); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if neg, ok := p.sess.State.(session.Negotiated); ok {
		neg.PingState = session.PingState{Outstanding: true, SentAt: time.Now()}
		p.sess.State = neg
	}
	return nil
}

// IsStale reports whether an outstanding Ping has gone unanswered past
// session.StaleConnectionTimeout. A session that never reached
// Negotiated (shouldn't happen for anything AttachSession holds) is
// never stale.
func (p *sessionPeer) IsStale(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	neg, ok := p.sess.State.(session.Negotiated)
	if !ok {
		return false
	}
	return session.IsStale(neg.PingState, now)
}

// Close marks the session Disconnected for reason and tears down the
// underlying muxer (and its connection).
func (p *sessionPeer) Close(reason session.DisconnectReason) error {
	p.mu.Lock()
	p.sess.State = session.Disconnected{Since: time.Now(), Reason: reason}
	p.mu.Unlock()
	return p.mux.Close()
}

func (p *sessionPeer) touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sess.LastActive = time.Now()
}

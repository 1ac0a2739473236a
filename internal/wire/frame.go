// Package wire implements the session framer (C1): multiplexing control,
// gossip, and Git byte streams over one already-authenticated, encrypted,
// ordered connection (a libp2p stream backed by the QUIC transport).
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is the fixed version byte carried in the session
// handshake's InitializeBundle. A mismatch makes session.Negotiate fail
// with ErrProtocolVersionMismatch (C2).
const ProtocolVersion byte = 1

// Direction tags which side of a session created a stream id, so both
// peers can assign ids independently without colliding.
type Direction uint8

const (
	// Outbound marks a stream id assigned by the side that dialed.
	Outbound Direction = iota
	// Inbound marks a stream id assigned by the side that accepted.
	Inbound
)

// Reserved stream ids: every session has exactly one gossip stream and
// one control stream, identified the same way on both sides.
const (
	GossipStreamID uint64 = 0
	ControlStreamID uint64 = 1

	firstEphemeralStreamID uint64 = 2
)

// FrameKind is the closed sum type of frame bodies.
type FrameKind uint8

const (
	// KindOpen announces a new ephemeral stream.
	KindOpen FrameKind = iota
	// KindClose ends a stream in both directions.
	KindClose
	// KindEOF signals end-of-input on a stream; the peer may still send.
	KindEOF
	// KindGossip carries a length-prefixed announcement or control-plane
	// message on GossipStreamID.
	KindGossip
	// KindGit carries opaque bytes belonging to a previously opened
	// stream.
	KindGit
)

func (k FrameKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindEOF:
		return "eof"
	case KindGossip:
		return "gossip"
	case KindGit:
		return "git"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Frame is one decoded unit off the wire: a stream id and a body.
type Frame struct {
	Stream uint64
	Kind   FrameKind
	Body   []byte // present for Gossip and Git; empty for Open/Close/Eof
}

// maxFrameBody bounds a single frame's body so a misbehaving peer can't
// force an unbounded allocation; larger payloads are split across
// multiple Git frames by the caller.
const maxFrameBody = 1 << 20

// writeFrame encodes one frame: stream id (varint), kind (1 byte), body
// length (varint), body bytes.
func writeFrame(w io.Writer, f Frame) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], f.Stream)
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(f.Kind)}); err != nil {
		return err
	}
	n = binary.PutUvarint(buf[:], uint64(len(f.Body)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	if len(f.Body) > 0 {
		if _, err := w.Write(f.Body); err != nil {
			return err
		}
	}
	return nil
}

// readFrame decodes one frame from r. Returns ErrDecode (wrapped) on any
// malformed input; callers must treat that as a misbehavior disconnect,
// not a retry.
func readFrame(r *bufio.Reader) (Frame, error) {
	stream, err := binary.ReadUvarint(r)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read stream id: %w: %v", ErrDecode, err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read kind: %w: %v", ErrDecode, err)
	}
	kind := FrameKind(kindByte)
	if kind > KindGit {
		return Frame{}, fmt.Errorf("wire: unknown frame kind %d: %w", kindByte, ErrDecode)
	}
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read body length: %w: %v", ErrDecode, err)
	}
	if length > maxFrameBody {
		return Frame{}, fmt.Errorf("wire: frame body %d exceeds max %d: %w", length, maxFrameBody, ErrDecode)
	}
	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, fmt.Errorf("wire: read body: %w: %v", ErrDecode, err)
		}
	}
	return Frame{Stream: stream, Kind: kind, Body: body}, nil
}

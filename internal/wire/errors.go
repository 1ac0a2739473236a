package wire

import "errors"

var (
	// ErrDecode marks a malformed frame; the session terminates and the
	// peer is disconnected with a misbehavior reason.
	ErrDecode = errors.New("wire: malformed frame")

	// ErrVersionMismatch names a peer protocol version byte that differs
	// from ProtocolVersion. No code in this package returns it; the
	// session layer reports a mismatch as
	// session.ErrProtocolVersionMismatch.
	ErrVersionMismatch = errors.New("wire: protocol version mismatch")

	// ErrStreamClosed is returned by Recv once the peer has closed the
	// stream, and by SendGit on a stream whose local CloseStream is in
	// progress. After a local CloseStream the id is forgotten, and calls
	// on it return ErrUnknownStream.
	ErrStreamClosed = errors.New("wire: stream closed")

	// ErrUnknownStream is returned when a Git or Eof frame arrives for a
	// stream id that was never opened.
	ErrUnknownStream = errors.New("wire: unknown stream id")

	// ErrBackpressureTimeout is returned by Recv when no chunk arrives on
	// the stream within the channel timeout; the stream is then closed.
	ErrBackpressureTimeout = errors.New("wire: backpressure timeout")

	// ErrMuxerClosed is returned by any operation on a Muxer after
	// Close.
	ErrMuxerClosed = errors.New("wire: muxer closed")
)

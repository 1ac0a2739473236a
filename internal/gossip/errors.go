package gossip

import "errors"

var (
	// ErrBadSignature is returned by Announcement.Verify for a signature
	// that doesn't validate against the declared signer (misbehavior,
	// not this error).
	ErrBadSignature = errors.New("gossip: announcement signature invalid")

	// ErrBadAlias is returned for a Node announcement whose alias is not
	// valid UTF-8 or exceeds MaxAliasLen.
	ErrBadAlias = errors.New("gossip: invalid alias")

	// ErrInsufficientProofOfWork is returned when a Node announcement's
	// nonce doesn't meet the fixed difficulty.
	ErrInsufficientProofOfWork = errors.New("gossip: insufficient proof of work")

	// ErrClockSkew names an announcement whose timestamp is more than
	// MaxTimeDelta in the future. The reactor drops such announcements
	// without returning this error.
	ErrClockSkew = errors.New("gossip: announcement timestamp too far in the future")

	// ErrStale names an announcement whose timestamp is not strictly
	// newer than the stored last-seen value for its kind. The reactor
	// drops such announcements without returning this error.
	ErrStale = errors.New("gossip: stale announcement")

	// ErrTooManyRepos names an Inventory announcement whose repo list
	// exceeds MaxInventoryRepos. No code in this package returns it.
	ErrTooManyRepos = errors.New("gossip: inventory repo list too large")

	// ErrUnknownRepo is delivered on a Fetch command's reply when the
	// routing table knows no node seeding the repo.
	ErrUnknownRepo = errors.New("gossip: no known seeds for repo")

	// ErrNoSessionForPeer is returned when a command requires a session
	// to a peer that isn't currently connected.
	ErrNoSessionForPeer = errors.New("gossip: no session for peer")

	// ErrNoDialer is returned by Connect when no Dialer has been
	// installed via SetDialer.
	ErrNoDialer = errors.New("gossip: no dialer installed")

	// ErrAlreadyConnected is returned by Connect when a session to the
	// requested node already exists.
	ErrAlreadyConnected = errors.New("gossip: already connected to peer")
)

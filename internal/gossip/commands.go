package gossip

import (
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// SeedingScope names which peers' namespaces the local node accepts refs
// from for a given repo. Service applies every scope the same way (the
// repo becomes followed); the scope value is not stored or enforced.
type SeedingScope interface {
	isSeedingScope()
}

// SeedAll accepts any peer's namespace.
type SeedAll struct{}

func (SeedAll) isSeedingScope() {}

// SeedFollowed accepts only namespaces of followed nodes and delegates.
type SeedFollowed struct{}

func (SeedFollowed) isSeedingScope() {}

// SeedBlock excludes the listed nodes; everyone else is accepted.
type SeedBlock struct {
	Excluded map[ids.NodeId]struct{}
}

func (SeedBlock) isSeedingScope() {}

// FetchResult is delivered on a Fetch command's reply channel once the
// requested fetch completes (successfully or not).
type FetchResult struct {
	Repo ids.RepoId
	Err  error
}

// command is the closed sum type of control commands accepted by
// Service.Do. Each carries its own reply channel so callers block only
// on their own request.
type command interface {
	isCommand()
}

// AnnounceRefsCmd broadcasts a fresh Refs announcement for Repo. Manifest
// is assembled by the caller (the storage/identity layer owns signing
// the actual ref set); the reactor only signs the announcement envelope
// and fans it out to every negotiated session.
type AnnounceRefsCmd struct {
	Repo     ids.RepoId
	Manifest *sigrefs.Manifest
	Reply    chan<- error
}

func (AnnounceRefsCmd) isCommand() {}

// ConnectCmd dials Node at Address and waits for the session to reach
// Negotiated (or fail).
type ConnectCmd struct {
	Node    ids.NodeId
	Address ma.Multiaddr
	Reply   chan<- error
}

func (ConnectCmd) isCommand() {}

// FetchCmd requests a one-shot fetch of Repo from whichever sessions
// can serve it; the result streams back on Reply.
type FetchCmd struct {
	Repo  ids.RepoId
	Reply chan<- FetchResult
}

func (FetchCmd) isCommand() {}

// FollowCmd marks Node as followed, optionally recording Alias.
type FollowCmd struct {
	Node  ids.NodeId
	Alias string
	Reply chan<- error
}

func (FollowCmd) isCommand() {}

// SeedCmd sets the seeding scope for Repo.
type SeedCmd struct {
	Repo  ids.RepoId
	Scope SeedingScope
	Reply chan<- error
}

func (SeedCmd) isCommand() {}

// DisconnectCmd tears down any session with Node.
type DisconnectCmd struct {
	Node  ids.NodeId
	Reply chan<- error
}

func (DisconnectCmd) isCommand() {}

// QueryStateCmd runs Fn against the service's internal state on the
// reactor goroutine and signals Reply once Fn has returned. For callers
// that need a consistent snapshot without racing the reactor.
type QueryStateCmd struct {
	Fn    func(*Service)
	Reply chan<- struct{}
}

func (QueryStateCmd) isCommand() {}

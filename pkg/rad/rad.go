// Package rad is the public surface for embedding a rhizome node in a
// host binary: a single constructor that wires identity, routing state,
// and the gossip service together, plus re-exports of the identifier
// and config types a caller needs to drive it without reaching into
// internal/.
package rad

import (
	"log/slog"

	"github.com/rhizome-dev/rhizome/internal/config"
	"github.com/rhizome-dev/rhizome/internal/gossip"
	"github.com/rhizome-dev/rhizome/internal/identity"
	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/routing"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// Re-exported identifier types, so a host binary never needs to import
// internal/ids directly.
type (
	NodeId  = ids.NodeId
	RepoId  = ids.RepoId
	Oid     = ids.Oid
	RefName = ids.RefName
)

// Config is the node configuration a Node is built from.
type Config = config.Config

// Events is the sink a host binary implements to observe routing
// updates and completed fetches.
type Events = gossip.Events

// Node bundles the identity, routing state, and gossip service of one
// embedded rhizome instance.
type Node struct {
	Self    ids.NodeId
	Service *gossip.Service
	Routing *routing.Table
	Addrs   *routing.AddressBook
}

// Open loads (or creates) the identity key named by cfg.Identity.KeyFile,
// constructs the routing table and address book, and returns a Node
// wired to fetcher and events. The Service calls fetcher directly for
// every fetch it runs; gossip.NewService installs no stand-in for a nil
// fetcher.
func Open(cfg Config, fetcher gossip.Fetcher, events Events, addressBookPath string, log *slog.Logger) (*Node, error) {
	priv, err := identity.LoadOrCreateIdentity(cfg.Identity.KeyFile)
	if err != nil {
		return nil, err
	}
	self, err := ids.NewNodeId(priv.GetPublic())
	if err != nil {
		return nil, err
	}

	rt := routing.NewTable(cfg.Gossip.RoutingMaxSize, cfg.Gossip.RoutingMaxAge)
	ab, err := routing.NewAddressBook(addressBookPath)
	if err != nil {
		return nil, err
	}

	signer := privKeySigner{priv: priv, self: self}
	svc := gossip.NewService(cfg.Gossip.Config, self, signer, rt, ab, fetcher, events, log)

	return &Node{Self: self, Service: svc, Routing: rt, Addrs: ab}, nil
}

type privKeySigner struct {
	priv interface {
		Sign([]byte) ([]byte, error)
	}
	self ids.NodeId
}

func (s privKeySigner) NodeId() ids.NodeId { return s.self }

func (s privKeySigner) Sign(canonical []byte) ([]byte, error) {
	return s.priv.Sign(canonical)
}

var _ sigrefs.Signer = privKeySigner{}

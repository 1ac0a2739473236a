package main

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

// keyfileSigner adapts a libp2p private key to sigrefs.Signer, letting
// the gossip service and sigrefs manifests sign with the node's own
// identity key without either package depending on crypto.PrivKey
// directly.
type keyfileSigner struct {
	priv crypto.PrivKey
	nid  ids.NodeId
}

func newKeyfileSigner(priv crypto.PrivKey) (*keyfileSigner, error) {
	nid, err := ids.NewNodeId(priv.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("derive node id: %w", err)
	}
	return &keyfileSigner{priv: priv, nid: nid}, nil
}

func (s *keyfileSigner) NodeId() ids.NodeId { return s.nid }

func (s *keyfileSigner) Sign(canonical []byte) ([]byte, error) {
	return s.priv.Sign(canonical)
}

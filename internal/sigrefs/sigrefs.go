// Package sigrefs implements the signed references manifest: the signed
// mapping RefName -> Oid that defines what a peer claims to hold for a
// repository, stored at refs/rad/sigrefs in that peer's namespace.
package sigrefs

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/rhizome-dev/rhizome/internal/ids"
)

var (
	ErrBadSignature = errors.New("sigrefs: signature does not verify")
	ErrEmptyRefs    = errors.New("sigrefs: manifest has no refs")
)

// Signer produces signatures on behalf of a NodeId. The concrete
// implementation (local key file, remote key agent, hardware token) is an
// external collaborator; this package only depends on the interface.
type Signer interface {
	NodeId() ids.NodeId
	Sign(canonical []byte) ([]byte, error)
}

// Manifest is a signed refname -> oid mapping for one peer's view of one
// repository.
type Manifest struct {
	Signer    ids.NodeId
	Refs      map[ids.RefName]ids.Oid
	Signature []byte
}

// rawManifest is the canonical encoding target: CBOR map keys sort
// lexicographically under canonical encoding, giving every signer the
// same byte string for the same ref set regardless of insertion order.
type rawManifest struct {
	Refs map[string][]byte `cbor:"refs"`
}

var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

func canonicalBytes(refs map[ids.RefName]ids.Oid) ([]byte, error) {
	raw := rawManifest{Refs: make(map[string][]byte, len(refs))}
	for ref, oid := range refs {
		raw.Refs[string(ref)] = oid.Bytes()
	}
	return canonicalEncMode.Marshal(raw)
}

// Sign builds and signs a Manifest over refs.
func Sign(signer Signer, refs map[ids.RefName]ids.Oid) (*Manifest, error) {
	if len(refs) == 0 {
		return nil, ErrEmptyRefs
	}
	canon, err := canonicalBytes(refs)
	if err != nil {
		return nil, fmt.Errorf("sigrefs: canonicalize: %w", err)
	}
	sig, err := signer.Sign(canon)
	if err != nil {
		return nil, fmt.Errorf("sigrefs: sign: %w", err)
	}
	cp := make(map[ids.RefName]ids.Oid, len(refs))
	for k, v := range refs {
		cp[k] = v
	}
	return &Manifest{Signer: signer.NodeId(), Refs: cp, Signature: sig}, nil
}

// Verify checks the manifest's signature over its own ref set: every
// manifest accepted into the local store must verify under its
// declared signer.
func (m *Manifest) Verify() error {
	canon, err := canonicalBytes(m.Refs)
	if err != nil {
		return fmt.Errorf("sigrefs: canonicalize: %w", err)
	}
	ok, err := m.Signer.Verify(canon, m.Signature)
	if err != nil {
		return fmt.Errorf("sigrefs: verify: %w", err)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// Get returns the oid a manifest claims for ref.
func (m *Manifest) Get(ref ids.RefName) (ids.Oid, bool) {
	oid, ok := m.Refs[ref]
	return oid, ok
}

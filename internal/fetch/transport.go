// Package fetch implements the staged fetch state machine (C4): bringing
// a local replica up to date with what a remote peer signs, atomically,
// over an in-memory shadow of the live reference database.
package fetch

import (
	"context"

	"github.com/rhizome-dev/rhizome/internal/doc"
	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// Byte limits for the two stage classes: "special" refs (identity +
// sigrefs documents) are small; "refs" (the actual data the manifests
// sign) can be large.
const (
	DefaultSpecialRefsLimit int64 = 5 * 1024 * 1024        // 5 MB
	DefaultDataRefsLimit    int64 = 5 * 1024 * 1024 * 1024 // 5 GB
)

// Transport is the per-remote Git stream: ls-refs negotiation followed
// by a pack fetch, both constrained by a byte limit, ending in a done
// signal. The real implementation opens an ephemeral stream via
// internal/wire and speaks Git's native upload-pack protocol over it —
// that worker pool is an external collaborator (out of scope here); this
// package only depends on the interface.
type Transport interface {
	// LsRefs negotiates the remote's current oid for every ref matching
	// any of prefixes.
	LsRefs(ctx context.Context, prefixes []string) (map[ids.RefName]ids.Oid, error)

	// FetchPack pulls the objects needed to make every ref in wants
	// resolvable locally, failing if doing so would exceed byteLimit.
	// On success the objects are in the local odb; staging the refs
	// themselves into the overlay is the caller's job.
	FetchPack(ctx context.Context, wants map[ids.RefName]ids.Oid, byteLimit int64) error

	// Done signals end of the fetch session so the remote's upload-pack
	// process can exit cleanly. Called even on failure, best-effort.
	Done(ctx context.Context) error

	// IdentityDoc decodes the remote's refs/rad/id blob, once S1 has
	// pulled it into the local object database. Returns ok=false if the
	// remote has no identity document. Decoding the Git blob itself is
	// an external collaborator's job; this is the seam it plugs into.
	IdentityDoc(ctx context.Context) (d *doc.Doc, ok bool, err error)

	// Manifest decodes and verifies the remote's refs/rad/sigrefs blob,
	// once S2 has pulled it in. Returns ok=false if absent; a present
	// but invalid signature is an error, not ok=false, since that's a
	// misbehavior rather than an absence.
	Manifest(ctx context.Context) (m *sigrefs.Manifest, ok bool, err error)
}

// ErrByteLimitExceeded is returned by a Transport implementation (and
// propagated as a stage error) when a stage's pack transfer would
// exceed its byte limit.
var ErrByteLimitExceeded = byteLimitError{}

type byteLimitError struct{}

func (byteLimitError) Error() string { return "fetch: stage byte limit exceeded" }

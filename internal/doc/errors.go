package doc

import "errors"

var (
	// ErrInvalidDoc is returned by Validate for any invariant violation.
	ErrInvalidDoc = errors.New("doc: invalid identity document")

	// ErrUnknownVersion is returned when decoding a RawDoc whose Version
	// field is neither 1 nor 2.
	ErrUnknownVersion = errors.New("doc: unknown document version")

	// ErrBadVisibility is returned when a RawDoc's visibility tag doesn't
	// match "public" or "private".
	ErrBadVisibility = errors.New("doc: bad visibility tag")

	// ErrBadRuleAllow is returned when a RawRule's allow tag is neither
	// "delegates" nor "set".
	ErrBadRuleAllow = errors.New("doc: bad rule allow tag")
)

package fetch

import "errors"

// ErrTransport covers stream/transport failures during a stage; see
// ErrByteLimitExceeded in transport.go for the byte-cap-specific case.
var ErrTransport = errors.New("fetch: transport error")

package transport

import "errors"

// Sentinel errors for transport-layer failures (spec.md §7). Framing and
// resource-exhaustion errors are returned to the caller directly; socket
// failures additionally flip the connection to stateFailed.
var (
	ErrMessageTooLarge = errors.New("transport: message exceeds configured maximum size")
	ErrTimeout         = errors.New("transport: deadline exceeded")
	ErrClosed          = errors.New("transport: connection closed")
	ErrProtocol        = errors.New("transport: malformed frame")
)

package application

import "errors"

// Sentinel errors returned by the outbound gateway. The HTTP layer maps them
// to status codes with errors.Is; none of them carry internal state-machine
// detail beyond the coarse reason.
var (
	// ErrNotReady means the session is not authenticated. Retryable by the
	// caller after polling readiness.
	ErrNotReady = errors.New("session not ready")

	// ErrInvalidRequest means the request shape is malformed. Not retryable
	// without a client-side fix.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTransportSend means the underlying transport send failed after
	// validation passed. The gateway never retries; the caller may.
	ErrTransportSend = errors.New("transport send failed")
)

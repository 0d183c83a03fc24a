// Package model contains the domain entities shared across ports and adapters.
package model

// SessionState is the lifecycle state of the single supervised WhatsApp session.
type SessionState int

const (
	// StateIdle is the initial state before the first connection attempt.
	StateIdle SessionState = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateAwaitingPairing means the transport issued a pairing code and the
	// session is waiting for an operator to scan it.
	StateAwaitingPairing
	// StateOpen means the session is authenticated and able to send.
	StateOpen
	// StateReconnecting means the session was lost transiently and a retry
	// timer is pending.
	StateReconnecting
	// StateLoggedOut is terminal: the account was explicitly deauthorized.
	// Credentials are wiped and an operator must re-pair via a restart.
	StateLoggedOut
	// StateFailed is terminal: the configured reconnect-attempt ceiling was
	// exhausted.
	StateFailed
)

// String returns the lowercase state name used in logs and health output.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateLoggedOut:
		return "logged_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Ready reports whether the session can accept outbound sends.
func (s SessionState) Ready() bool {
	return s == StateOpen
}

// Terminal reports whether the supervisor has stopped driving the session.
func (s SessionState) Terminal() bool {
	return s == StateLoggedOut || s == StateFailed
}

// Package driven defines the outbound port interfaces implemented by adapters.
package driven

import (
	"context"
	"errors"

	"github.com/clinicops/wa-adapter/internal/domain/model"
)

// ErrCredentialCorruption is returned by Transport.Connect when the persisted
// credential blob is structurally unusable. The supervisor reacts by wiping
// the stored credentials and starting a fresh pairing cycle; the process
// keeps running.
var ErrCredentialCorruption = errors.New("persisted credentials are corrupt")

// CloseReason classifies why the transport connection ended.
type CloseReason int

const (
	// CloseUnknown covers closures the transport could not attribute.
	CloseUnknown CloseReason = iota
	// CloseNetwork is a network-level drop or timeout.
	CloseNetwork
	// CloseStreamReplaced means another client took over the session stream.
	CloseStreamReplaced
	// CloseLoggedOut is an explicit deauthorization. It is the only
	// non-transient reason: the supervisor must not reconnect.
	CloseLoggedOut
)

// Transient reports whether the supervisor may schedule a reconnect.
func (r CloseReason) Transient() bool {
	return r != CloseLoggedOut
}

// String returns the reason name used in logs.
func (r CloseReason) String() string {
	switch r {
	case CloseNetwork:
		return "network"
	case CloseStreamReplaced:
		return "stream_replaced"
	case CloseLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// EventKind discriminates the Event tagged union.
type EventKind int

const (
	// EventPairingCode carries a freshly issued pairing code. Each code
	// supersedes the previous one.
	EventPairingCode EventKind = iota
	// EventOpened signals a live, authenticated connection.
	EventOpened
	// EventClosed signals disconnection with a reason.
	EventClosed
	// EventCredentialsUpdated carries a rotated credential blob that must be
	// persisted before further events are processed.
	EventCredentialsUpdated
	// EventMessage carries a raw inbound message.
	EventMessage
)

// Event is a lifecycle or message notification from the transport. Exactly
// the field matching Kind is populated. Events are delivered in order for a
// single connection instance; ordering resets across reconnects.
type Event struct {
	Kind        EventKind
	PairingCode string
	Reason      CloseReason
	Credentials []byte
	Message     RawMessage
}

// RawMessage is an inbound message as the transport saw it, before relay
// normalization and filtering.
type RawMessage struct {
	From      string
	FromSelf  bool
	Kind      string
	Text      string
	Timestamp int64
}

// Handle is a live (or in-flight) transport connection. It is owned
// exclusively by the supervisor and never retained across a terminal
// transition.
type Handle interface {
	// Events returns the ordered event stream for this connection instance.
	// The channel is closed when the connection is torn down.
	Events() <-chan Event

	// SendText sends a plain-text message to the given fully qualified JID.
	SendText(ctx context.Context, jid, text string) error

	// SendButtons sends an interactive yes/no reply-button message.
	SendButtons(ctx context.Context, jid string, msg model.ButtonsSend) error

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// Transport opens session connections against the messaging provider.
// credentials is the opaque blob from the credential store, or nil when no
// pairing has happened yet (a pairing code will be issued).
type Transport interface {
	Connect(ctx context.Context, credentials []byte) (Handle, error)
}

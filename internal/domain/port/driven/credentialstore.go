package driven

import "context"

// CredentialStore persists the opaque session credential blob across process
// restarts. The blob's format is owned by the transport provider; this port
// only stores, loads, and deletes it. The supervisor is the single writer.
type CredentialStore interface {
	// Load returns the persisted blob, or (nil, nil) when none exists.
	Load(ctx context.Context) ([]byte, error)

	// Save stores or replaces the blob. Writes are idempotent; last write wins.
	Save(ctx context.Context, blob []byte) error

	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context) error
}

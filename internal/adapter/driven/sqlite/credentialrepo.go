package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// It persists the single opaque session credential blob, optionally encrypted
// with AES-256-GCM at rest.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores the blob unencrypted.
}

// NewCredentialRepo creates a CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store the blob in the clear.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Load returns the persisted blob, or (nil, nil) when none exists.
func (r *CredentialRepo) Load(ctx context.Context) ([]byte, error) {
	const query = `SELECT blob FROM session_credentials WHERE id = 1`

	var stored []byte
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	blob, err := r.decrypt(stored)
	if err != nil {
		// A blob that no longer decrypts (rotated key, truncated ciphertext)
		// is unrecoverable; the supervisor wipes it and re-pairs.
		return nil, fmt.Errorf("%w: decrypt credentials: %v", driven.ErrCredentialCorruption, err)
	}
	return blob, nil
}

// Save stores or replaces the blob. Last write wins.
func (r *CredentialRepo) Save(ctx context.Context, blob []byte) error {
	stored, err := r.encrypt(blob)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO session_credentials (id, blob, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, stored); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Delete removes the blob. Deleting an absent blob is not an error.
func (r *CredentialRepo) Delete(ctx context.Context) error {
	const query = `DELETE FROM session_credentials WHERE id = 1`
	if _, err := r.db.Writer.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// encrypt seals blob with AES-256-GCM, producing nonce || ciphertext || tag.
// With no key configured the blob passes through unchanged.
func (r *CredentialRepo) encrypt(blob []byte) ([]byte, error) {
	if r.key == nil {
		return blob, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, blob, nil), nil
}

// decrypt opens an AES-256-GCM sealed blob. With no key configured the
// stored bytes pass through unchanged.
func (r *CredentialRepo) decrypt(stored []byte) ([]byte, error) {
	if r.key == nil {
		return stored, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(stored) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := stored[:nonceSize], stored[nonceSize:]
	blob, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}

	return blob, nil
}

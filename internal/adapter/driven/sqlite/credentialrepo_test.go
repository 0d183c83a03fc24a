package sqlite

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)
	return key
}

func TestCredentialRepo_LoadAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)

	blob, err := repo.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestCredentialRepo_SaveLoadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte("device-jid-1")))

	blob, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("device-jid-1"), blob)
}

func TestCredentialRepo_SaveIsLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte("first")))
	require.NoError(t, repo.Save(ctx, []byte("second")))

	blob, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), blob)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte("blob")))
	require.NoError(t, repo.Delete(ctx))

	blob, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, blob)

	// Deleting again is not an error.
	require.NoError(t, repo.Delete(ctx))
}

func TestCredentialRepo_EncryptedRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	key := testKey(t)
	repo := NewCredentialRepo(db, key)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte("secret-session-state")))

	blob, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret-session-state"), blob)

	// The stored bytes must not contain the plaintext.
	var stored []byte
	err = db.Reader.QueryRowContext(ctx, `SELECT blob FROM session_credentials WHERE id = 1`).Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, string(stored), "secret-session-state")
}

func TestCredentialRepo_WrongKeyLoadsAsCorruption(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey(t)).Save(ctx, []byte("blob")))

	// A rotated key must surface as corruption so the caller wipes and
	// re-pairs instead of retrying forever.
	_, err := NewCredentialRepo(db, testKey(t)).Load(ctx)
	assert.ErrorIs(t, err, driven.ErrCredentialCorruption)
}

func TestCredentialRepo_TruncatedCiphertextLoadsAsCorruption(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const query = `INSERT OR REPLACE INTO session_credentials (id, blob, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)`
	_, err := db.Writer.ExecContext(ctx, query, []byte("short"))
	require.NoError(t, err)

	_, err = NewCredentialRepo(db, testKey(t)).Load(ctx)
	assert.ErrorIs(t, err, driven.ErrCredentialCorruption)
}

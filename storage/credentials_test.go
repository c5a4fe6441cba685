package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.etcd.io/bbolt"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestStore(t *testing.T) (*BoltCredentialStore, string) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := InitDB(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewBoltCredentialStore(db, testKey)
	require.NoError(t, err)
	return store, dataDir
}

func TestNewBoltCredentialStoreRejectsShortKey(t *testing.T) {
	dataDir := t.TempDir()
	db, err := InitDB(dataDir)
	require.NoError(t, err)
	defer db.Close()

	_, err = NewBoltCredentialStore(db, []byte("too short"))
	assert.Error(t, err)
}

func TestInsertAndLookup(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Insert("user@example.com", "abcd efgh ijkl mnop")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user@example.com", created.Email)

	found, err := store.Lookup("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "abcd efgh ijkl mnop", found.Secret)
	assert.False(t, found.CreatedAt.IsZero())
}

func TestLookupUnknownEmail(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Lookup("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateEmail(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Insert("user@example.com", "first")
	require.NoError(t, err)

	_, err = store.Insert("user@example.com", "second")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// The original secret survives the rejected re-registration
	found, err := store.Lookup("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", found.Secret)
}

func TestEmailKeyIsCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Insert("User@Example.COM", "secret")
	require.NoError(t, err)

	found, err := store.Lookup("  user@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "secret", found.Secret)

	_, err = store.Insert("USER@example.com", "other")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSecretIsNotStoredInPlaintext(t *testing.T) {
	store, dataDir := newTestStore(t)

	const secret = "super-secret-app-password"
	_, err := store.Insert("user@example.com", secret)
	require.NoError(t, err)

	var raw []byte
	err = store.db.View(func(tx *bbolt.Tx) error {
		raw = append(raw, tx.Bucket([]byte(credentialsBucket)).Get([]byte("user@example.com"))...)
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), secret)

	// The database file itself never holds the plaintext either
	fileBytes, err := os.ReadFile(filepath.Join(dataDir, "mailsift.db"))
	require.NoError(t, err)
	assert.NotContains(t, string(fileBytes), secret)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := encrypt("app password", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, "app password", ciphertext)

	plaintext, err := decrypt(ciphertext, testKey)
	require.NoError(t, err)
	assert.Equal(t, "app password", plaintext)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	ciphertext, err := encrypt("app password", testKey)
	require.NoError(t, err)

	wrongKey := []byte("ffffffffffffffffffffffffffffffff")
	_, err = decrypt(ciphertext, wrongKey)
	assert.Error(t, err)
}

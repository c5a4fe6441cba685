package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"mailsift/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when no credential is stored for an email.
	ErrNotFound = errors.New("credential not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// CredentialStore looks up and registers mailbox credentials. Lookups are
// safe for concurrent use; registration is serialized by the store.
type CredentialStore interface {
	Lookup(email string) (*models.Credential, error)
	Insert(email, secret string) (*models.Credential, error)
}

// BoltCredentialStore persists credentials in a bbolt bucket keyed by email,
// with the secret encrypted using AES-GCM.
type BoltCredentialStore struct {
	db  *bbolt.DB
	key []byte
}

// storedCredential is the on-disk record. Unlike models.Credential it
// serializes the (encrypted) secret.
type storedCredential struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBoltCredentialStore creates a credential store over an open database.
// The encryption key must be 32 bytes.
func NewBoltCredentialStore(db *bbolt.DB, encryptionKey []byte) (*BoltCredentialStore, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(encryptionKey))
	}
	return &BoltCredentialStore{db: db, key: encryptionKey}, nil
}

// Lookup retrieves the credential for an email, with the secret decrypted.
func (s *BoltCredentialStore) Lookup(email string) (*models.Credential, error) {
	var stored storedCredential

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(credentialsBucket)).Get([]byte(normalizeEmail(email)))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, err
	}

	secret, err := decrypt(stored.Secret, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %v", err)
	}

	return &models.Credential{
		ID:        stored.ID,
		Email:     stored.Email,
		Secret:    secret,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// Insert registers a new credential. Existing registrations are never
// overwritten.
func (s *BoltCredentialStore) Insert(email, secret string) (*models.Credential, error) {
	encryptedSecret, err := encrypt(secret, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %v", err)
	}

	stored := storedCredential{
		ID:        uuid.New().String(),
		Email:     normalizeEmail(email),
		Secret:    encryptedSecret,
		CreatedAt: time.Now(),
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		if bucket.Get([]byte(stored.Email)) != nil {
			return ErrDuplicateEmail
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %v", err)
		}

		return bucket.Put([]byte(stored.Email), data)
	})
	if err != nil {
		return nil, err
	}

	return &models.Credential{
		ID:        stored.ID,
		Email:     stored.Email,
		Secret:    secret,
		CreatedAt: stored.CreatedAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// encrypt encrypts plaintext using AES-GCM
func encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf("%x", ciphertext), nil
}

// decrypt decrypts ciphertext using AES-GCM
func decrypt(ciphertextHex string, key []byte) (string, error) {
	var ciphertext []byte
	if _, err := fmt.Sscanf(ciphertextHex, "%x", &ciphertext); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

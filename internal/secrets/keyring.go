// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"
)

// Key derivation and cipher parameters: scrypt into AES-256-GCM.
const (
	KeySize   = 32
	NonceSize = 12
	SaltSize  = 32
	scryptR   = 8
	scryptP   = 1
)

// scryptN is the scrypt cost. Package-level var so tests can lower it.
var scryptN = 32768

var (
	// ErrLocked is returned when an operation needs a session and none is unlocked.
	ErrLocked = errors.New("session locked: unlock with a passphrase first")

	// ErrEmptyPassphrase rejects an unlock with no passphrase.
	ErrEmptyPassphrase = errors.New("passphrase required")

	// ErrWrongPassphrase is returned when sealed data cannot be opened.
	ErrWrongPassphrase = errors.New("cannot decrypt credential: wrong passphrase or corrupted data")
)

// Sealed is an encrypted value with the nonce and salt needed to open it.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// Session is an unlocked passphrase. It is immutable: locking the keyring
// does not revoke a session already handed to a running operation.
type Session struct {
	passphrase []byte
	unlockedAt time.Time
}

// NewSession returns a session for passphrase.
func NewSession(passphrase string) (*Session, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Session{passphrase: []byte(passphrase), unlockedAt: time.Now().UTC()}, nil
}

// UnlockedAt reports when the session was created.
func (s *Session) UnlockedAt() time.Time {
	return s.unlockedAt
}

// Seal encrypts plaintext under a key derived from the passphrase and a
// fresh salt.
func (s *Session) Seal(plaintext string) (Sealed, error) {
	if plaintext == "" {
		return Sealed{}, fmt.Errorf("plaintext cannot be empty")
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Sealed{}, fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return Sealed{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, fmt.Errorf("generating nonce: %w", err)
	}
	return Sealed{
		Ciphertext: gcm.Seal(nil, nonce, []byte(plaintext), nil),
		Nonce:      nonce,
		Salt:       salt,
	}, nil
}

// Open decrypts a value produced by Seal with the same passphrase.
func (s *Session) Open(sealed Sealed) (string, error) {
	if len(sealed.Salt) != SaltSize || len(sealed.Nonce) != NonceSize {
		return "", ErrWrongPassphrase
	}
	gcm, err := s.aead(sealed.Salt)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return "", ErrWrongPassphrase
	}
	return string(plaintext), nil
}

func (s *Session) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// Keyring holds at most one unlocked session for a long-running process.
type Keyring struct {
	mu      sync.RWMutex
	session *Session
}

// Unlock replaces the current session with one for passphrase.
func (k *Keyring) Unlock(passphrase string) (*Session, error) {
	s, err := NewSession(passphrase)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.session = s
	k.mu.Unlock()
	return s, nil
}

// Lock forgets the current session.
func (k *Keyring) Lock() {
	k.mu.Lock()
	k.session = nil
	k.mu.Unlock()
}

// Session returns the unlocked session or ErrLocked.
func (k *Keyring) Session() (*Session, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.session == nil {
		return nil, ErrLocked
	}
	return k.session, nil
}

// Unlocked reports whether a session is available.
func (k *Keyring) Unlocked() bool {
	_, err := k.Session()
	return err == nil
}

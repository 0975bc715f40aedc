package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the number of iterations for passphrase key derivation.
	PBKDF2Iterations = 100000

	// SaltSize is the size of the PBKDF2 salt.
	SaltSize = 16
)

// SecretSealer encrypts contact secrets at rest under a passphrase-derived key.
//
// Sealed values use the framed message layout with KindHandshakeBlob so the same
// AEAD and tamper detection apply.
type SecretSealer struct {
	cipher *Cipher
	salt   []byte
}

// NewSecretSealer derives a sealing key from passphrase and salt. A nil salt
// generates a fresh random salt, retrievable with Salt for persistence.
func NewSecretSealer(passphrase []byte, salt []byte) (*SecretSealer, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}

	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt size: got %d, want %d", len(salt), SaltSize)
	}

	derivedKey := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, KeySize, sha256.New)
	defer ZeroBytes(derivedKey)

	c, err := NewCipher(derivedKey)
	if err != nil {
		return nil, err
	}

	return &SecretSealer{cipher: c, salt: append([]byte(nil), salt...)}, nil
}

// Salt returns the PBKDF2 salt the sealer was derived with.
func (s *SecretSealer) Salt() []byte {
	return append([]byte(nil), s.salt...)
}

// Seal encrypts a secret for storage.
func (s *SecretSealer) Seal(secret []byte) ([]byte, error) {
	return s.cipher.Encode(byte(KindHandshakeBlob), secret)
}

// Open decrypts a sealed secret. A wrong passphrase surfaces as ErrAuthentication.
func (s *SecretSealer) Open(sealed []byte) ([]byte, error) {
	control, secret, err := s.cipher.Decode(sealed)
	if err != nil {
		return nil, err
	}
	if Kind(control) != KindHandshakeBlob {
		return nil, fmt.Errorf("%w: sealed secret tagged %d", ErrMalformedFrame, control)
	}
	return secret, nil
}

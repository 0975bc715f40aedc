package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/chanderlud/audio-chat/limits"
	"github.com/sirupsen/logrus"
)

// KeySize is the size of a shared secret used directly as an AES-128 key.
const KeySize = 16

// Cipher encodes and decodes framed messages under one shared secret.
// A Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher keyed by a 16-byte shared secret.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		logrus.WithFields(logrus.Fields{
			"function": "NewCipher",
			"key_size": len(key),
			"expected": KeySize,
		}).Error("Rejected key with invalid size")
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, limits.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encode seals plaintext into a framed message tagged with control.
//
// A control byte of KindSilence produces the one-byte silence marker and ignores
// plaintext. Audio and chat payloads larger than one audio frame are rejected;
// every other kind is bounded only by the per-call plaintext ceiling.
func (c *Cipher) Encode(control byte, plaintext []byte) ([]byte, error) {
	if control == byte(KindSilence) {
		return []byte{control}, nil
	}

	if control == byte(KindAudio) || control == byte(KindChat) {
		if err := limits.ValidateAudioFrame(plaintext); err != nil {
			return nil, err
		}
	} else if err := limits.ValidatePlaintext(plaintext); err != nil {
		return nil, err
	}

	wire := make([]byte, limits.FrameOverhead, limits.FrameOverhead+len(plaintext))
	wire[0] = control
	nonce := wire[1 : 1+limits.NonceSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(plaintext)]
	tag := sealed[len(plaintext):]

	copy(wire[1+limits.NonceSize:], tag)
	wire = append(wire, ciphertext...)

	return wire, nil
}

// Decode verifies and opens a framed message. The silence marker decodes to
// (KindSilence, nil) without further parsing.
func (c *Cipher) Decode(wire []byte) (byte, []byte, error) {
	if len(wire) == 0 {
		return 0, nil, ErrShortFrame
	}

	control := wire[0]
	if control == byte(KindSilence) {
		return control, nil, nil
	}

	if len(wire) < limits.FrameOverhead {
		return control, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(wire))
	}

	nonce := wire[1 : 1+limits.NonceSize]
	tag := wire[1+limits.NonceSize : limits.FrameOverhead]
	ciphertext := wire[limits.FrameOverhead:]

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(sealed[:0], nonce, sealed, nil)
	if err != nil {
		return control, nil, ErrAuthentication
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return control, plaintext, nil
}

// Encode seals plaintext under key. See Cipher.Encode.
func Encode(key []byte, control byte, plaintext []byte) ([]byte, error) {
	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}
	return c.Encode(control, plaintext)
}

// Decode opens a framed message under key. See Cipher.Decode.
func Decode(key, wire []byte) (byte, []byte, error) {
	c, err := NewCipher(key)
	if err != nil {
		return 0, nil, err
	}
	return c.Decode(wire)
}

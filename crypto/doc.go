// Package crypto implements the framed authenticated encryption used on every
// channel of an audio-chat call.
//
// # Wire Format
//
// A framed message is laid out as
//
//	[control(1)][nonce(16)][tag(16)][ciphertext(N)]
//
// The control byte is a [Kind] tag. The only exception is the silence marker,
// whose entire wire form is the single byte 3 with no nonce, tag or ciphertext.
//
// Encryption is AES-128-GCM with a 16-byte random nonce and a 16-byte tag, keyed
// directly by the contact's 16-byte shared secret:
//
//	c, _ := crypto.NewCipher(contact.Key())
//	wire, _ := c.EncodeFrame(crypto.AudioFrame{PCM: pcm})
//	frame, err := c.DecodeFrame(wire)
//	if errors.Is(err, crypto.ErrAuthentication) {
//	    // drop the datagram
//	}
//
// # Frame Variants
//
// [Cipher.DecodeFrame] decodes a message once into one of [AudioFrame],
// [ChatChunk], [FileChunk], [SilenceMarker], [HandshakePort] or [HandshakeBlob],
// and consumers match on the concrete type.
//
// # Nonce Reuse
//
// Nonces are drawn from crypto/rand for every message and are never tracked
// across messages. With 128-bit random nonces a collision under one key is not
// expected before roughly 2^64 messages, far beyond the lifetime of a call, but
// a replayed datagram is accepted as fresh. Audio is lossy and reordered by
// design, so no sequence window is kept.
//
// # Secrets At Rest
//
// [SecretSealer] derives an AES key from a passphrase with PBKDF2 and seals
// contact secrets for storage.
package crypto

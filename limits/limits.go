package limits

import (
	"errors"
	"fmt"
	"time"
)

const (
	// SampleRate is the PCM sampling rate used for every call.
	SampleRate = 48000

	// Channels is the number of interleaved PCM channels (mono).
	Channels = 1

	// SampleWidth is the size in bytes of one signed 16-bit sample.
	SampleWidth = 2

	// FrameSamples is the number of samples per audio frame (10ms).
	FrameSamples = 480

	// FrameSize is the size in bytes of one audio frame.
	FrameSize = FrameSamples * SampleWidth * Channels

	// FrameDuration is the playback duration of one audio frame.
	FrameDuration = 10 * time.Millisecond

	// NonceSize is the size of the random nonce carried by every framed message.
	NonceSize = 16

	// TagSize is the size of the authentication tag carried by every framed message.
	TagSize = 16

	// FrameOverhead is the number of bytes the framed cipher adds to a plaintext.
	FrameOverhead = 1 + NonceSize + TagSize

	// MaxDatagram is the largest audio-channel datagram a receiver reads.
	MaxDatagram = FrameSize*2 + FrameOverhead

	// MaxLatencyBytes is 0.25s of buffered audio. Buffers holding more than this are
	// trimmed down to the newest frame.
	MaxLatencyBytes = SampleRate * SampleWidth * Channels / 4

	// SilenceStreak is the number of consecutive quiet frames after which the
	// capture loop switches to silence markers.
	SilenceStreak = 40

	// PortFrameSize is the wire size of a framed 2-byte port announcement.
	PortFrameSize = FrameOverhead + 2

	// MaxHandshakePayload is the largest opaque handshake blob accepted on the
	// control channel.
	MaxHandshakePayload = 4096

	// ControlPacketSize is the size of the first read on an inbound control connection.
	ControlPacketSize = 5

	// DefaultFileChunk is the chunk size used for outgoing file transfers.
	DefaultFileChunk = 1024 * 1024

	// MaxFileChunk is the largest chunk size accepted from a peer descriptor.
	MaxFileChunk = 8 * 1024 * 1024

	// MaxPlaintext is the per-call plaintext ceiling of the framed cipher.
	MaxPlaintext = MaxFileChunk
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateAudioFrame checks that an audio or chat payload fits in one frame.
// Empty payloads are allowed: an empty chat chunk terminates a message.
func ValidateAudioFrame(frame []byte) error {
	if len(frame) > FrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, len(frame), FrameSize)
	}
	return nil
}

// ValidatePlaintext checks a payload against the per-call plaintext ceiling.
func ValidatePlaintext(plaintext []byte) error {
	if len(plaintext) > MaxPlaintext {
		return fmt.Errorf("%w: plaintext size %d exceeds limit %d", ErrMessageTooLarge, len(plaintext), MaxPlaintext)
	}
	return nil
}

// ValidateHandshakePayload validates an opaque control-channel blob.
func ValidateHandshakePayload(payload []byte) error {
	return ValidateMessageSize(payload, MaxHandshakePayload)
}

// ValidateChunkSize validates a chunk size advertised by a peer.
func ValidateChunkSize(chunkSize uint64) error {
	if chunkSize == 0 {
		return fmt.Errorf("%w: chunk size is zero", ErrMessageEmpty)
	}
	if chunkSize > MaxFileChunk {
		return fmt.Errorf("%w: chunk size %d exceeds limit %d", ErrMessageTooLarge, chunkSize, MaxFileChunk)
	}
	return nil
}

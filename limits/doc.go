// Package limits provides centralized audio framing constants and size validation
// for the audio-chat session protocol. Every component that encodes, buffers or
// parses peer-supplied data checks sizes against the values defined here.
//
// # Size Hierarchy
//
//   - FrameSize (960 bytes): one 10ms frame of 16-bit mono PCM at 48kHz. Audio and
//     chat messages never carry more plaintext than this in a single datagram.
//
//   - FrameOverhead (33 bytes): control byte, 16-byte nonce and 16-byte tag added by
//     the framed cipher.
//
//   - MaxHandshakePayload (4096 bytes): the largest opaque blob (session description,
//     file descriptor) accepted on the control channel.
//
//   - MaxFileChunk (8MiB): the largest chunk size a peer may advertise for a file
//     transfer, which is also the per-call plaintext ceiling.
//
// # Validation Functions
//
//	if err := limits.ValidateAudioFrame(frame); err != nil {
//	    // ErrMessageTooLarge
//	}
//
// Validation errors wrap ErrMessageEmpty or ErrMessageTooLarge so callers can
// classify them with errors.Is.
package limits

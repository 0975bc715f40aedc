package crypto

import "errors"

var (
	// ErrAuthentication indicates a framed message failed tag verification:
	// wrong key, corrupted packet, or a forged message.
	ErrAuthentication = errors.New("message authentication failed")

	// ErrInvalidKey indicates a key that is not exactly KeySize bytes.
	ErrInvalidKey = errors.New("invalid key size")

	// ErrShortFrame indicates a wire message too short to hold the frame header.
	ErrShortFrame = errors.New("framed message too short")

	// ErrUnknownKind indicates a control byte with no assigned frame kind.
	ErrUnknownKind = errors.New("unknown frame kind")

	// ErrMalformedFrame indicates a frame whose payload does not match its kind.
	ErrMalformedFrame = errors.New("malformed frame payload")
)

package transport

import "errors"

var (
	// ErrInvalidPortRange indicates a port range string that does not parse as "low-high".
	ErrInvalidPortRange = errors.New("invalid port range")

	// ErrUnexpectedFrame indicates a handshake frame of the wrong kind.
	ErrUnexpectedFrame = errors.New("unexpected handshake frame")

	// ErrEmptyControlPacket indicates a control connection closed before its type byte.
	ErrEmptyControlPacket = errors.New("empty control packet")
)

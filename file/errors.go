package file

import "errors"

var (
	// ErrMalformedHandshake indicates a descriptor payload that cannot be parsed.
	ErrMalformedHandshake = errors.New("malformed file transfer handshake")

	// ErrSignatureMismatch indicates received data whose SHA-256 differs from the descriptor.
	ErrSignatureMismatch = errors.New("file signature mismatch")

	// ErrFileTooLarge indicates an announced file larger than MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileNameTooLong indicates that a file name exceeds the maximum allowed length.
	ErrFileNameTooLong = errors.New("file name too long")

	// ErrUnexpectedPeer indicates a transfer connection from a host other than the call peer.
	ErrUnexpectedPeer = errors.New("transfer connection from unexpected host")

	// ErrTransferStalled indicates that a transfer has not received data within the timeout period.
	ErrTransferStalled = errors.New("transfer stalled: no data received within timeout period")

	// ErrTransferCancelled indicates the transfer was cancelled locally.
	ErrTransferCancelled = errors.New("transfer cancelled")
)

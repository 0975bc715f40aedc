package contact

import "errors"

var (
	// ErrInvalidSecret indicates a shared secret that is not exactly SecretSize bytes.
	ErrInvalidSecret = errors.New("shared secret must be 16 bytes")

	// ErrInvalidNickname indicates an empty or unusable nickname.
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrNotFound indicates no contact with the requested nickname or host.
	ErrNotFound = errors.New("contact not found")

	// ErrDuplicateNickname indicates a contact with the same nickname already exists.
	ErrDuplicateNickname = errors.New("nickname already in use")
)

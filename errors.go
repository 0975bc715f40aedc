package audiochat

import "errors"

var (
	// ErrNotRunning indicates a network operation before Listen.
	ErrNotRunning = errors.New("client is not running")

	// ErrNoScreenshare indicates there is no screenshare to end.
	ErrNoScreenshare = errors.New("no active screenshare")

	// ErrClosed indicates use of a closed client.
	ErrClosed = errors.New("client closed")
)

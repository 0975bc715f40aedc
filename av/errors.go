package av

import "errors"

var (
	// ErrInvalidTransition indicates a state change the transition table forbids.
	ErrInvalidTransition = errors.New("invalid call state transition")

	// ErrCallActive indicates a call or audio test is already running.
	ErrCallActive = errors.New("a call is already active")

	// ErrNoActiveCall indicates an operation that needs a running call.
	ErrNoActiveCall = errors.New("no active call")

	// ErrNilConn indicates Connect or Rebind was given no socket.
	ErrNilConn = errors.New("nil audio connection")

	// ErrNilDevice indicates Connect or StartTest was given no audio device.
	ErrNilDevice = errors.New("nil audio device")
)

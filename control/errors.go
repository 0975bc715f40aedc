package control

import "errors"

var (
	// ErrUnknownPeer indicates a connection from a host with no contact.
	ErrUnknownPeer = errors.New("connection from unknown peer")

	// ErrPeerMismatch indicates a request from a contact other than the
	// current call's peer.
	ErrPeerMismatch = errors.New("request from a peer outside the current call")

	// ErrNoTransferPort indicates no port in the range could be bound.
	ErrNoTransferPort = errors.New("no free transfer port")
)

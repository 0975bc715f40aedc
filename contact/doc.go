// Package contact manages the people a client can call.
//
// A [Contact] is identified by a unique nickname and reached at a host and
// control port. Its 16-byte shared secret authenticates the peer and keys every
// framed message exchanged with it.
//
//	c, err := contact.New("alice", "192.0.2.10", 45000, "0123456789abcdef")
//	if errors.Is(err, contact.ErrInvalidSecret) {
//	    // secrets must be exactly 16 bytes
//	}
//
// # Liveness
//
// Each contact in a [Directory] has a [Prober] that opens and immediately
// closes a TCP connection to the peer's control port once per second. Success
// marks the contact online and records the connect latency; any failure marks
// it offline. Probers stop when their context is cancelled or the contact is
// removed.
//
// # Persistence
//
// Contacts are persisted through a [Store]. [JSONStore] keeps one
// "<nickname>.json" file per contact holding {ip, port, secret, nickname};
// [SQLiteStore] keeps them in a database and seals secrets with a passphrase.
package contact

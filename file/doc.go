// Package file implements file transfers between the two peers of a call.
//
// A transfer is announced on the control channel with a packed [Descriptor]
// holding the file's extension, name, length, chunk size and SHA-256
// signature. The receiver answers with a port, listens on it, and the sender
// streams the file as framed [crypto.FileChunk] messages of at most ChunkSize
// plaintext bytes each:
//
//	desc, err := file.FromFile(path, limits.DefaultFileChunk)
//	port, err := peer.FileTransferHandshake(ctx, desc)
//	err = file.Send(ctx, addr, cipher, path, desc, transfer)
//
// The receiving side accepts exactly one connection from the expected host,
// reassembles the plaintext, verifies the signature and only then writes the
// file to the download directory under a sanitized, non-clobbering name. A
// signature mismatch discards the data and reports [ErrSignatureMismatch]. A
// tampered frame aborts the transfer with an error matching both
// [ErrSignatureMismatch] and [crypto.ErrAuthentication].
//
// # Tracking
//
// Every transfer is tracked by a [Transfer] with a UUID, state, progress,
// speed estimate and stall detection. A [Manager] holds the active transfers so
// that ending a call can cancel them all.
package file

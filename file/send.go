package file

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/chanderlud/audio-chat/crypto"
	"github.com/sirupsen/logrus"
)

// DialTimeout bounds connecting to the receiver's transfer port.
const DialTimeout = 5 * time.Second

// Send streams the file at path to addr as framed file chunks. Exactly
// desc.Length bytes are sent in desc.ChunkSize pieces. t may be nil.
func Send(ctx context.Context, addr string, c *crypto.Cipher, path string, desc Descriptor, t *Transfer) (err error) {
	if t == nil {
		t = NewTransfer(addr, desc, DirectionOutgoing)
	}
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
	defer func() { t.finish(path, err) }()

	ctx = t.bind(ctx)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to transfer port: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := t.start(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": t.ID.String(),
		"addr":        addr,
		"file_name":   desc.FormattedName(),
		"file_size":   desc.Length,
	}).Info("Sending file")

	chunk := make([]byte, desc.ChunkSize)
	remaining := desc.Length
	for remaining > 0 {
		n := desc.ChunkSize
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(f, chunk[:n]); err != nil {
			return fmt.Errorf("file shorter than announced: %w", err)
		}

		wire, err := c.EncodeFrame(crypto.FileChunk{Data: chunk[:n]})
		if err != nil {
			return err
		}
		if _, err := conn.Write(wire); err != nil {
			if ctx.Err() != nil {
				return ErrTransferCancelled
			}
			return err
		}

		remaining -= n
		t.advance(n)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"transfer_id": t.ID.String(),
	}).Debug("Sent entire file")

	return nil
}

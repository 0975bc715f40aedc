package file

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chanderlud/audio-chat/buffer"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/sirupsen/logrus"
)

// MaxFileSize bounds incoming files, which are held in memory until verified.
const MaxFileSize = 1 << 30

// DefaultAcceptTimeout bounds waiting for the sender to connect.
const DefaultAcceptTimeout = 30 * time.Second

// Receiver accepts one incoming transfer on a dedicated port.
type Receiver struct {
	Transfer *Transfer

	listener      *net.TCPListener
	cipher        *crypto.Cipher
	expectedHost  string
	dir           string
	acceptTimeout time.Duration
}

// Listen validates desc and binds the transfer port. Files are saved in dir.
func Listen(port uint16, expectedHost string, c *crypto.Cipher, desc Descriptor, dir string) (*Receiver, error) {
	if err := validateIncoming(desc); err != nil {
		return nil, err
	}

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("failed to listen for transfer: %w", err)
	}
	return NewReceiver(ln, expectedHost, c, desc, dir)
}

// NewReceiver wraps a listener bound before the descriptor arrived, as the
// control handshake announces the port first. The listener is closed when
// desc is rejected.
func NewReceiver(ln *net.TCPListener, expectedHost string, c *crypto.Cipher, desc Descriptor, dir string) (*Receiver, error) {
	if err := validateIncoming(desc); err != nil {
		ln.Close()
		return nil, err
	}

	return &Receiver{
		Transfer:      NewTransfer(expectedHost, desc, DirectionIncoming),
		listener:      ln,
		cipher:        c,
		expectedHost:  expectedHost,
		dir:           dir,
		acceptTimeout: DefaultAcceptTimeout,
	}, nil
}

func validateIncoming(desc Descriptor) error {
	if err := limits.ValidateChunkSize(desc.ChunkSize); err != nil {
		return err
	}
	if desc.Length > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, desc.Length)
	}
	return nil
}

// Port returns the bound port.
func (r *Receiver) Port() uint16 {
	return uint16(r.listener.Addr().(*net.TCPAddr).Port)
}

// SetAcceptTimeout overrides DefaultAcceptTimeout.
func (r *Receiver) SetAcceptTimeout(d time.Duration) {
	r.acceptTimeout = d
}

// Close releases the listener.
func (r *Receiver) Close() error {
	return r.listener.Close()
}

// Receive waits for the sender, reassembles and verifies the file, and saves
// it. It returns the saved path.
func (r *Receiver) Receive(ctx context.Context) (path string, err error) {
	t := r.Transfer
	defer func() { t.finish(path, err) }()
	defer r.listener.Close()

	ctx = t.bind(ctx)
	stop := context.AfterFunc(ctx, func() { r.listener.Close() })
	defer stop()

	conn, err := r.accept()
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrTransferCancelled
		}
		return "", err
	}
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopConn()

	if err := t.start(); err != nil {
		return "", err
	}

	desc := t.Descriptor
	logrus.WithFields(logrus.Fields{
		"function":    "Receiver.Receive",
		"transfer_id": t.ID.String(),
		"peer":        r.expectedHost,
		"file_name":   desc.FormattedName(),
		"file_size":   desc.Length,
	}).Info("Receiving file")

	data, err := r.readPayload(conn, desc)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrTransferCancelled
		}
		return "", err
	}

	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:], desc.Signature[:]) != 1 {
		crypto.ZeroBytes(data)
		logrus.WithFields(logrus.Fields{
			"function":    "Receiver.Receive",
			"transfer_id": t.ID.String(),
			"file_name":   desc.FormattedName(),
		}).Warn("File signature mismatch, discarding")
		return "", ErrSignatureMismatch
	}

	return Save(r.dir, desc.FormattedName(), data)
}

func (r *Receiver) accept() (net.Conn, error) {
	if err := r.listener.SetDeadline(time.Now().Add(r.acceptTimeout)); err != nil {
		return nil, err
	}

	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if host == r.expectedHost {
			return conn, nil
		}

		logrus.WithFields(logrus.Fields{
			"function": "Receiver.accept",
			"expected": r.expectedHost,
			"actual":   host,
		}).Warn("Rejected transfer connection from unexpected host")
		conn.Close()
	}
}

// readPayload reads one frame per chunk; every frame but the last carries
// exactly ChunkSize bytes of plaintext.
func (r *Receiver) readPayload(conn net.Conn, desc Descriptor) ([]byte, error) {
	assembler := buffer.NewSizedAssembler(desc.Length)
	wire := make([]byte, desc.ChunkSize+limits.FrameOverhead)
	stall := r.Transfer.StallTimeout()

	for !assembler.Complete() {
		n := desc.ChunkSize
		if remaining := desc.Length - assembler.Received(); remaining < n {
			n = remaining
		}

		if stall > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(stall)); err != nil {
				return nil, err
			}
		}
		frameLen := int(n) + limits.FrameOverhead
		if _, err := io.ReadFull(conn, wire[:frameLen]); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrTransferStalled
			}
			return nil, fmt.Errorf("transfer connection closed early: %w", err)
		}

		frame, err := r.cipher.DecodeFrame(wire[:frameLen])
		if err != nil {
			assembler.Discard()
			if errors.Is(err, crypto.ErrAuthentication) {
				return nil, fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
			}
			return nil, err
		}
		chunk, ok := frame.(crypto.FileChunk)
		if !ok {
			assembler.Discard()
			return nil, fmt.Errorf("unexpected %s frame on transfer connection", frame.Kind())
		}

		if _, err := assembler.Add(chunk.Data); err != nil {
			assembler.Discard()
			return nil, err
		}
		r.Transfer.advance(uint64(len(chunk.Data)))
	}

	return assembler.Payload(), nil
}

// SanitizeName reduces a peer-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"|?*`, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" || name == "/" {
		return "download"
	}
	if len(name) > MaxFileNameLength {
		name = name[:MaxFileNameLength]
	}
	return name
}

// Save writes data into dir under a sanitized name, appending " (n)" before
// the extension rather than overwriting an existing file.
func Save(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name = SanitizeName(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + " (" + strconv.Itoa(i) + ")" + ext
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", err
		}

		logrus.WithFields(logrus.Fields{
			"function":  "Save",
			"path":      path,
			"file_size": len(data),
		}).Info("Saved received file")
		return path, nil
	}
}

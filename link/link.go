package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPeerUnreachable indicates the peer's control port could not be reached.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrHandshakeTimeout indicates the peer stopped responding mid-handshake.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrDeclined indicates the peer closed the connection without answering,
	// as it does when a call is rejected.
	ErrDeclined = errors.New("peer declined")
)

// DefaultTimeout bounds a whole handshake.
const DefaultTimeout = 10 * time.Second

// Reason is the goodbye message type.
type Reason = transport.MessageType

const (
	ReasonCallEnd        = transport.MessageGoodbye
	ReasonScreenshareEnd = transport.MessageScreenshareGoodbye
)

// DialFunc opens the control connection.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Link is the initiating side of the control channel for one contact.
type Link struct {
	Contact *contact.Contact
	Ports   transport.PortRange
	Timeout time.Duration
	Dial    DialFunc
}

// New creates a link to c choosing local ports from ports.
func New(c *contact.Contact, ports transport.PortRange) *Link {
	return &Link{
		Contact: c,
		Ports:   ports,
		Timeout: DefaultTimeout,
		Dial:    transport.DialControl,
	}
}

func (l *Link) open(ctx context.Context, msg transport.MessageType) (net.Conn, *crypto.Cipher, error) {
	c, err := crypto.NewCipher(l.Contact.Key())
	if err != nil {
		return nil, nil, err
	}

	conn, err := l.Dial(ctx, l.Contact.Addr())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := transport.WriteControl(conn, msg); err != nil {
		conn.Close()
		return nil, nil, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Link.open",
		"nickname": l.Contact.Nickname,
		"message":  msg.String(),
	}).Debug("Control message sent")

	return conn, c, nil
}

func (l *Link) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// SayHello starts or resumes a call. It returns the port the peer receives
// audio on and the local port chosen for receiving.
func (l *Link) SayHello(ctx context.Context) (sendPort, receivePort uint16, err error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	conn, c, err := l.open(ctx, transport.MessageHello)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	sendPort, err = transport.ReadPortFrame(conn, c)
	if err != nil {
		return 0, 0, classify(err)
	}

	receivePort = l.Ports.Random()
	if err := transport.WriteFrame(conn, c, crypto.HandshakePort{Port: receivePort}); err != nil {
		return 0, 0, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Link.SayHello",
		"nickname":     l.Contact.Nickname,
		"send_port":    sendPort,
		"receive_port": receivePort,
	}).Info("Hello handshake completed")

	return sendPort, receivePort, nil
}

// SayGoodbye notifies the peer that the call or screenshare ended.
func (l *Link) SayGoodbye(ctx context.Context, reason Reason) error {
	ctx, cancel := context.WithTimeout(ctx, transport.ControlDialTimeout)
	defer cancel()

	conn, _, err := l.open(ctx, reason)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ScreenshareHandshake offers a screenshare. The peer answers with its receive
// port, which is returned along with the description sent to it.
func (l *Link) ScreenshareHandshake(ctx context.Context, salt []byte) (screenshare.Description, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	conn, c, err := l.open(ctx, transport.MessageScreenshare)
	if err != nil {
		return screenshare.Description{}, err
	}
	defer conn.Close()

	port, err := transport.ReadPortFrame(conn, c)
	if err != nil {
		return screenshare.Description{}, classify(err)
	}

	desc := screenshare.NewDescription(l.Contact.Host, port, l.Contact.Key(), salt)
	payload, err := desc.Marshal()
	if err != nil {
		return screenshare.Description{}, err
	}
	if err := transport.WriteFrame(conn, c, crypto.HandshakeBlob{Payload: payload}); err != nil {
		return screenshare.Description{}, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Link.ScreenshareHandshake",
		"nickname": l.Contact.Nickname,
		"port":     port,
	}).Info("Screenshare handshake completed")

	return desc, nil
}

// FileTransferHandshake announces desc and returns the port the peer receives
// the file on.
func (l *Link) FileTransferHandshake(ctx context.Context, desc file.Descriptor) (uint16, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	conn, c, err := l.open(ctx, transport.MessageFileTransfer)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	port, err := transport.ReadPortFrame(conn, c)
	if err != nil {
		return 0, classify(err)
	}
	if err := transport.WriteFrame(conn, c, crypto.HandshakeBlob{Payload: desc.Pack()}); err != nil {
		return 0, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Link.FileTransferHandshake",
		"nickname":  l.Contact.Nickname,
		"port":      port,
		"file_name": desc.FormattedName(),
	}).Info("File transfer handshake completed")

	return port, nil
}

// classify maps socket errors onto the handshake error taxonomy. Crypto and
// framing errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, crypto.ErrAuthentication) || errors.Is(err, crypto.ErrMalformedFrame) ||
		errors.Is(err, crypto.ErrUnknownKind) || errors.Is(err, transport.ErrUnexpectedFrame) {
		return err
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
}

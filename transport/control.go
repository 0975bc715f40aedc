package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/sirupsen/logrus"
)

// MessageType is the first byte of every control connection.
type MessageType byte

const (
	MessageHello              MessageType = 0
	MessageGoodbye            MessageType = 1
	MessageScreenshare        MessageType = 2
	MessageScreenshareGoodbye MessageType = 3
	MessageFileTransfer       MessageType = 4
)

func (m MessageType) String() string {
	switch m {
	case MessageHello:
		return "hello"
	case MessageGoodbye:
		return "goodbye"
	case MessageScreenshare:
		return "screenshare"
	case MessageScreenshareGoodbye:
		return "screenshare_goodbye"
	case MessageFileTransfer:
		return "file_transfer"
	default:
		return "unknown(" + strconv.Itoa(int(m)) + ")"
	}
}

// ControlDialTimeout bounds connecting to a peer's control port.
const ControlDialTimeout = 5 * time.Second

// DialControl opens a TCP connection to a peer's control port.
func DialControl(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: ControlDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DialControl",
			"addr":     addr,
			"error":    err.Error(),
		}).Debug("Control dial failed")
		return nil, err
	}
	return conn, nil
}

// ListenControl listens for control connections on all interfaces.
func ListenControl(port uint16) (*net.TCPListener, error) {
	return net.ListenTCP("tcp", &net.TCPAddr{Port: int(port)})
}

// WriteControl sends the message-type byte that opens a control exchange.
func WriteControl(w io.Writer, msg MessageType) error {
	_, err := w.Write([]byte{byte(msg)})
	return err
}

// ReadControlPacket reads the opening control packet, at most
// limits.ControlPacketSize bytes, and returns its message type.
func ReadControlPacket(r io.Reader) (MessageType, error) {
	packet := make([]byte, limits.ControlPacketSize)
	n, err := r.Read(packet)
	if n == 0 {
		if err == nil || err == io.EOF {
			return 0, ErrEmptyControlPacket
		}
		return 0, err
	}
	return MessageType(packet[0]), nil
}

// WriteFrame seals a frame and writes it in one call.
func WriteFrame(w io.Writer, c *crypto.Cipher, f crypto.Frame) error {
	wire, err := c.EncodeFrame(f)
	if err != nil {
		return err
	}
	_, err = w.Write(wire)
	return err
}

// ReadPortFrame reads exactly one framed port announcement.
func ReadPortFrame(r io.Reader, c *crypto.Cipher) (uint16, error) {
	wire := make([]byte, limits.PortFrameSize)
	if _, err := io.ReadFull(r, wire); err != nil {
		return 0, err
	}

	frame, err := c.DecodeFrame(wire)
	if err != nil {
		return 0, err
	}
	port, ok := frame.(crypto.HandshakePort)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedFrame, frame.Kind())
	}
	return port.Port, nil
}

// ReadBlobFrame reads a framed blob that the sender ends by closing the
// connection.
func ReadBlobFrame(r io.Reader, c *crypto.Cipher) ([]byte, error) {
	limit := int64(limits.FrameOverhead + limits.MaxHandshakePayload)
	wire, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	// The ciphertext is as long as the payload it carries.
	if len(wire) >= limits.FrameOverhead {
		if err := limits.ValidateHandshakePayload(wire[limits.FrameOverhead:]); err != nil {
			return nil, err
		}
	}

	frame, err := c.DecodeFrame(wire)
	if err != nil {
		return nil, err
	}
	blob, ok := frame.(crypto.HandshakeBlob)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedFrame, frame.Kind())
	}
	return blob.Payload, nil
}

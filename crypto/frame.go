package crypto

import (
	"encoding/binary"
	"fmt"
)

// Kind tags the payload carried by a framed message.
type Kind byte

const (
	// KindAudio carries one frame of raw PCM.
	KindAudio Kind = 0
	// KindChat carries one chunk of a UTF-8 chat message.
	KindChat Kind = 1
	// KindFileChunk carries one chunk of a file on a transfer connection.
	KindFileChunk Kind = 2
	// KindSilence is the unencrypted one-byte silence marker.
	KindSilence Kind = 3
	// KindHandshakePort carries a 2-byte big-endian port on the control channel.
	KindHandshakePort Kind = 4
	// KindHandshakeBlob carries an opaque handshake payload on the control channel.
	KindHandshakeBlob Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindChat:
		return "chat"
	case KindFileChunk:
		return "file_chunk"
	case KindSilence:
		return "silence"
	case KindHandshakePort:
		return "handshake_port"
	case KindHandshakeBlob:
		return "handshake_blob"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Frame is a decoded framed message. The set of implementations is closed.
type Frame interface {
	Kind() Kind
	payload() []byte
}

// AudioFrame is one frame of 16-bit little-endian mono PCM.
type AudioFrame struct{ PCM []byte }

// ChatChunk is a piece of a chat message. A chunk shorter than one audio frame
// ends the message.
type ChatChunk struct{ Text []byte }

// FileChunk is a piece of a file being transferred.
type FileChunk struct{ Data []byte }

// SilenceMarker signals one frame of silence.
type SilenceMarker struct{}

// HandshakePort announces the port a peer listens on.
type HandshakePort struct{ Port uint16 }

// HandshakeBlob carries an opaque handshake payload such as a session
// description or a transfer descriptor.
type HandshakeBlob struct{ Payload []byte }

func (AudioFrame) Kind() Kind    { return KindAudio }
func (ChatChunk) Kind() Kind     { return KindChat }
func (FileChunk) Kind() Kind     { return KindFileChunk }
func (SilenceMarker) Kind() Kind { return KindSilence }
func (HandshakePort) Kind() Kind { return KindHandshakePort }
func (HandshakeBlob) Kind() Kind { return KindHandshakeBlob }

func (f AudioFrame) payload() []byte    { return f.PCM }
func (f ChatChunk) payload() []byte     { return f.Text }
func (f FileChunk) payload() []byte     { return f.Data }
func (SilenceMarker) payload() []byte   { return nil }
func (f HandshakeBlob) payload() []byte { return f.Payload }

func (f HandshakePort) payload() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, f.Port)
	return b
}

// EncodeFrame seals a frame variant into its wire form.
func (c *Cipher) EncodeFrame(f Frame) ([]byte, error) {
	return c.Encode(byte(f.Kind()), f.payload())
}

// DecodeFrame verifies a wire message and returns its frame variant.
func (c *Cipher) DecodeFrame(wire []byte) (Frame, error) {
	control, plaintext, err := c.Decode(wire)
	if err != nil {
		return nil, err
	}

	switch Kind(control) {
	case KindAudio:
		return AudioFrame{PCM: plaintext}, nil
	case KindChat:
		return ChatChunk{Text: plaintext}, nil
	case KindFileChunk:
		return FileChunk{Data: plaintext}, nil
	case KindSilence:
		return SilenceMarker{}, nil
	case KindHandshakePort:
		if len(plaintext) != 2 {
			return nil, fmt.Errorf("%w: port payload is %d bytes", ErrMalformedFrame, len(plaintext))
		}
		return HandshakePort{Port: binary.BigEndian.Uint16(plaintext)}, nil
	case KindHandshakeBlob:
		return HandshakeBlob{Payload: plaintext}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, control)
	}
}

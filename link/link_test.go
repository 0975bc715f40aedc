package link

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

// fakePeer answers control connections the way a remote control server does.
type fakePeer struct {
	ln       *net.TCPListener
	cipher   *crypto.Cipher
	port     uint16
	messages chan transport.MessageType
	replies  chan uint16
	blobs    chan []byte
	silent   bool
}

func startFakePeer(t *testing.T, port uint16, silent bool) *fakePeer {
	t.Helper()
	ln, err := transport.ListenControl(0)
	require.NoError(t, err)
	c, err := crypto.NewCipher([]byte(testSecret))
	require.NoError(t, err)

	p := &fakePeer{
		ln:       ln,
		cipher:   c,
		port:     port,
		messages: make(chan transport.MessageType, 8),
		replies:  make(chan uint16, 8),
		blobs:    make(chan []byte, 8),
		silent:   silent,
	}
	t.Cleanup(func() { ln.Close() })
	go p.serve()
	return p
}

func (p *fakePeer) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakePeer) handle(conn net.Conn) {
	defer conn.Close()
	msg, err := transport.ReadControlPacket(conn)
	if err != nil {
		return
	}
	p.messages <- msg

	if p.silent {
		time.Sleep(time.Second)
		return
	}

	switch msg {
	case transport.MessageHello:
		if transport.WriteFrame(conn, p.cipher, crypto.HandshakePort{Port: p.port}) != nil {
			return
		}
		if port, err := transport.ReadPortFrame(conn, p.cipher); err == nil {
			p.replies <- port
		}
	case transport.MessageScreenshare, transport.MessageFileTransfer:
		if transport.WriteFrame(conn, p.cipher, crypto.HandshakePort{Port: p.port}) != nil {
			return
		}
		if blob, err := transport.ReadBlobFrame(conn, p.cipher); err == nil {
			p.blobs <- blob
		}
	}
}

func (p *fakePeer) contact(t *testing.T) *contact.Contact {
	t.Helper()
	port := uint16(p.ln.Addr().(*net.TCPAddr).Port)
	c, err := contact.New("alice", "127.0.0.1", port, testSecret)
	require.NoError(t, err)
	return c
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for fake peer")
		var zero T
		return zero
	}
}

func TestSayHello(t *testing.T) {
	peer := startFakePeer(t, 20123, false)
	l := New(peer.contact(t), transport.MustParsePortRange("30000-30010"))

	sendPort, receivePort, err := l.SayHello(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(20123), sendPort)
	assert.True(t, l.Ports.Contains(receivePort))

	assert.Equal(t, transport.MessageHello, receive(t, peer.messages))
	assert.Equal(t, receivePort, receive(t, peer.replies))
}

func TestSayGoodbye(t *testing.T) {
	peer := startFakePeer(t, 0, false)
	l := New(peer.contact(t), transport.MustParsePortRange("30000-30010"))

	require.NoError(t, l.SayGoodbye(context.Background(), ReasonScreenshareEnd))
	assert.Equal(t, transport.MessageScreenshareGoodbye, receive(t, peer.messages))
}

func TestScreenshareHandshake(t *testing.T) {
	peer := startFakePeer(t, 20777, false)
	l := New(peer.contact(t), transport.MustParsePortRange("30000-30010"))

	salt := make([]byte, screenshare.SaltSize)
	desc, err := l.ScreenshareHandshake(context.Background(), salt)
	require.NoError(t, err)
	assert.Equal(t, uint16(20777), desc.Port)

	blob := receive(t, peer.blobs)
	parsed, err := screenshare.ParseDescription(blob)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", parsed.Host)
	assert.Equal(t, uint16(20777), parsed.Port)
	assert.Equal(t, append([]byte(testSecret), salt...), parsed.Key)
}

func TestFileTransferHandshake(t *testing.T) {
	peer := startFakePeer(t, 20999, false)
	l := New(peer.contact(t), transport.MustParsePortRange("30000-30010"))

	desc := file.Descriptor{Extension: "txt", Name: "notes", Length: 42, ChunkSize: 1024}
	port, err := l.FileTransferHandshake(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, uint16(20999), port)

	got, err := file.FromHandshake(receive(t, peer.blobs))
	require.NoError(t, err)
	assert.True(t, desc.Equal(got))
}

func TestUnreachablePeer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portText, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	port, _ := strconv.Atoi(portText)
	c, err := contact.New("ghost", "127.0.0.1", uint16(port), testSecret)
	require.NoError(t, err)

	_, _, err = New(c, transport.MustParsePortRange("30000-30010")).SayHello(context.Background())
	assert.ErrorIs(t, err, ErrPeerUnreachable)
}

func TestSilentPeerTimesOut(t *testing.T) {
	peer := startFakePeer(t, 0, true)
	l := New(peer.contact(t), transport.MustParsePortRange("30000-30010"))
	l.Timeout = 100 * time.Millisecond

	_, _, err := l.SayHello(context.Background())
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
}

func TestWrongSecretFailsAuthentication(t *testing.T) {
	peer := startFakePeer(t, 20123, false)
	port := uint16(peer.ln.Addr().(*net.TCPAddr).Port)
	c, err := contact.New("mallory", "127.0.0.1", port, "fedcba9876543210")
	require.NoError(t, err)

	_, _, err = New(c, transport.MustParsePortRange("30000-30010")).SayHello(context.Background())
	assert.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(context.DeadlineExceeded), ErrHandshakeTimeout)
	assert.ErrorIs(t, classify(errors.New("connection reset")), ErrPeerUnreachable)
	assert.ErrorIs(t, classify(crypto.ErrAuthentication), crypto.ErrAuthentication)
}

package av

import (
	"encoding/binary"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

var errInjected = errors.New("injected failure")

// fakeDevice captures a constant tone at the real frame cadence and counts
// what it is asked to play.
type fakeDevice struct {
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once

	failAfter int32
	reads     atomic.Int32
	written   atomic.Int32
	loud      atomic.Int32
	closed    atomic.Bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		ticker: time.NewTicker(limits.FrameDuration),
		done:   make(chan struct{}),
	}
}

// newFailingDevice returns a device whose reads fail after n frames.
func newFailingDevice(n int32) *fakeDevice {
	d := newFakeDevice()
	d.failAfter = n
	return d
}

func toneFrame() []byte {
	frame := make([]byte, limits.FrameSize)
	for i := 0; i < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(8000))
	}
	return frame
}

func (d *fakeDevice) ReadFrame(size int) ([]byte, error) {
	select {
	case <-d.done:
		return nil, net.ErrClosed
	case <-d.ticker.C:
	}
	if d.failAfter > 0 && d.reads.Add(1) > d.failAfter {
		return nil, errInjected
	}
	return toneFrame()[:size], nil
}

func (d *fakeDevice) WriteFrame(frame []byte) error {
	select {
	case <-d.done:
		return net.ErrClosed
	default:
	}
	d.written.Add(1)
	for _, b := range frame {
		if b != 0 {
			d.loud.Add(1)
			break
		}
	}
	return nil
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.ticker.Stop()
		close(d.done)
	})
	return nil
}

// memConn is one end of an in-memory datagram link. Writes never block: a
// full queue drops the datagram the way a UDP socket would.
type memConn struct {
	in     chan []byte
	out    chan []byte
	local  net.Addr
	remote net.Addr

	mu       sync.Mutex
	deadline time.Time

	closed    chan struct{}
	closeOnce sync.Once

	failWrites atomic.Int32
}

func memPipe() (*memConn, *memConn) {
	ab := make(chan []byte, 256)
	ba := make(chan []byte, 256)
	addrA := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 20001}
	addrB := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 20002}
	a := &memConn{in: ba, out: ab, local: addrA, remote: addrB, closed: make(chan struct{})}
	b := &memConn{in: ab, out: ba, local: addrB, remote: addrA, closed: make(chan struct{})}
	return a, b
}

func (c *memConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-c.closed:
		return 0, net.ErrClosed
	case b := <-c.in:
		return copy(p, b), nil
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *memConn) Write(p []byte) (int, error) {
	if c.failWrites.Add(-1) >= 0 {
		return 0, errInjected
	}
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	select {
	case c.out <- append([]byte(nil), p...):
	default:
	}
	return len(p), nil
}

// inject delivers a raw datagram as if the peer had sent it.
func (c *memConn) inject(p []byte) {
	c.in <- p
}

func (c *memConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *memConn) LocalAddr() net.Addr  { return c.local }
func (c *memConn) RemoteAddr() net.Addr { return c.remote }

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// recordingSink keeps every event for assertions.
type recordingSink struct {
	mu       sync.Mutex
	messages map[string][][]byte
	statuses []string
	notices  []events.Notice
}

func newRecordingSink() *recordingSink {
	return &recordingSink{messages: make(map[string][][]byte)}
}

func (r *recordingSink) OnMessage(nickname string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[nickname] = append(r.messages[nickname], payload)
}

func (r *recordingSink) OnStatusChange(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, state)
}

func (r *recordingSink) OnNotice(n events.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingSink) count(kind events.NoticeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingSink) notice(kind events.NoticeKind) (events.Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, notice := range r.notices {
		if notice.Kind == kind {
			return notice, true
		}
	}
	return events.Notice{}, false
}

func (r *recordingSink) messagesFrom(nickname string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages[nickname]...)
}

func newTestContact(t *testing.T, nickname string) *contact.Contact {
	t.Helper()
	c, err := contact.New(nickname, "127.0.0.1", 9000, testSecret)
	require.NoError(t, err)
	return c
}

// connect drives s from Ready to Connected against peer.
func connect(t *testing.T, s *CallSession, peer *contact.Contact, conn *memConn, device *fakeDevice) {
	t.Helper()
	require.NoError(t, s.Begin(peer))
	require.NoError(t, s.Connect(conn, device))
	t.Cleanup(func() { _ = s.End() })
}

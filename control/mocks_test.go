package control

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/link"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "0123456789abcdef"
	waitFor    = 5 * time.Second
	tick       = 20 * time.Millisecond
)

type recordingSink struct {
	mu      sync.Mutex
	notices []events.Notice
}

func (r *recordingSink) OnMessage(string, []byte) {}
func (r *recordingSink) OnStatusChange(string)    {}

func (r *recordingSink) OnNotice(n events.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingSink) find(kind events.NoticeKind) (events.Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Kind == kind {
			return n, true
		}
	}
	return events.Notice{}, false
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

// harness is the answering side: a control server with its own session.
type harness struct {
	server    *Server
	session   *av.CallSession
	sink      *recordingSink
	prompts   atomic.Int32
	goodbyes  atomic.Int32
	downloads string
}

func startServer(t *testing.T, accept bool, opener audio.Opener, peerHost string) *harness {
	t.Helper()

	h := &harness{sink: &recordingSink{}, downloads: t.TempDir()}
	h.session = av.NewCallSession(av.WithSink(h.sink))

	dir := contact.NewDirectory(nil)
	alice, err := contact.New("alice", peerHost, 9, testSecret)
	require.NoError(t, err)
	require.NoError(t, dir.Add(alice))

	h.server = &Server{
		Directory: dir,
		Session:   h.session,
		Acceptor: AcceptorFunc(func(ctx context.Context, nickname string) bool {
			h.prompts.Add(1)
			return accept
		}),
		Ports:         transport.MustParsePortRange("41000-41999"),
		Files:         file.NewManager(),
		Screens:       screenshare.NewSession(nil),
		Opener:        opener,
		Sink:          h.sink,
		DownloadDir:   h.downloads,
		AcceptTimeout: time.Second,
		Goodbye: func(context.Context, *contact.Contact) {
			h.goodbyes.Add(1)
		},
	}
	require.NoError(t, h.server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.server.Serve(ctx) }()

	t.Cleanup(func() {
		_ = h.session.End()
		cancel()
		<-done
	})
	return h
}

func (h *harness) port() uint16 {
	return uint16(h.server.Addr().(*net.TCPAddr).Port)
}

// dialer returns the initiating side's link to the harness.
func (h *harness) dialer(t *testing.T) (*link.Link, *contact.Contact) {
	t.Helper()
	bob, err := contact.New("bob", "127.0.0.1", h.port(), testSecret)
	require.NoError(t, err)
	l := link.New(bob, transport.MustParsePortRange("42000-42999"))
	l.Timeout = waitFor
	return l, bob
}

// call places a call from a fresh local session to the harness.
func (h *harness) call(t *testing.T) (*av.CallSession, *link.Link) {
	t.Helper()
	l, bob := h.dialer(t)

	local := av.NewCallSession()
	require.NoError(t, local.Begin(bob))

	sendPort, receivePort, err := l.SayHello(context.Background())
	require.NoError(t, err)

	conn, err := transport.DialAudio(receivePort, "127.0.0.1", sendPort)
	require.NoError(t, err)
	require.NoError(t, local.Connect(conn, audio.NewNullDevice()))
	t.Cleanup(func() { _ = local.End() })

	require.Eventually(t, func() bool {
		return h.session.State() == av.StateConnected
	}, waitFor, tick)
	return local, l
}

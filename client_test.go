package audiochat

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/config"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/control"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "0123456789abcdef"
	waitFor    = 5 * time.Second
	tick       = 10 * time.Millisecond
)

type recordingSink struct {
	mu       sync.Mutex
	messages []string
	notices  []events.Notice
}

func (r *recordingSink) OnMessage(_ string, payload []byte) {
	r.mu.Lock()
	r.messages = append(r.messages, string(payload))
	r.mu.Unlock()
}

func (r *recordingSink) OnStatusChange(string) {}

func (r *recordingSink) OnNotice(n events.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recordingSink) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
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

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func testConfig(t *testing.T, dir, audioPorts string) config.Config {
	t.Helper()
	cfg := config.Default(dir)
	cfg.ControlPort = freePort(t)
	cfg.AudioPorts = audioPorts
	cfg.APIAddress = "127.0.0.1:0"
	cfg.AcceptTimeout = 2 * time.Second
	return cfg
}

type testClient struct {
	*Client
	sink *recordingSink
	cfg  config.Config
}

func startClient(t *testing.T, audioPorts string, opts ...Option) *testClient {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(t, dir, audioPorts)
	sink := &recordingSink{}

	opts = append([]Option{WithAcceptor(control.AcceptAll), WithSink(sink)}, opts...)
	c, err := New(cfg, dir, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		c.Close()
	})

	return &testClient{Client: c, sink: sink, cfg: cfg}
}

func (c *testClient) port() uint16 {
	return uint16(c.ControlAddr().(*net.TCPAddr).Port)
}

// pair starts two clients that know each other as alice and bob.
func pair(t *testing.T, bobOpts ...Option) (alice, bob *testClient) {
	t.Helper()
	alice = startClient(t, "43000-43499")
	bob = startClient(t, "43500-43999", bobOpts...)

	_, err := alice.AddContact("bob", "127.0.0.1", bob.port(), testSecret)
	require.NoError(t, err)
	_, err = bob.AddContact("alice", "127.0.0.1", alice.port(), testSecret)
	require.NoError(t, err)
	return alice, bob
}

func connected(a, b *testClient) func() bool {
	return func() bool {
		return a.Status().State == av.StateConnected.String() &&
			b.Status().State == av.StateConnected.String()
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.AudioPorts = "nonsense"
	_, err := New(cfg, t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCallBetweenClients(t *testing.T) {
	alice, bob := pair(t)

	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)
	assert.Equal(t, "bob", alice.Status().Peer)
	assert.Equal(t, "alice", bob.Status().Peer)

	require.NoError(t, alice.SendMessage([]byte("hello bob")))
	assert.Eventually(t, func() bool {
		got := bob.sink.received()
		return len(got) == 1 && got[0] == "hello bob"
	}, waitFor, tick)

	require.NoError(t, alice.EndCall())
	assert.Equal(t, av.StateReady.String(), alice.Status().State)
	assert.Eventually(t, func() bool {
		return bob.Status().State == av.StateReady.String()
	}, waitFor, tick)
}

func TestInitiateCallUnknownContact(t *testing.T) {
	alice := startClient(t, "43000-43499")
	err := alice.InitiateCall(context.Background(), "carol")
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestInitiateCallDeclined(t *testing.T) {
	reject := control.AcceptorFunc(func(context.Context, string) bool { return false })
	alice, bob := pair(t, WithAcceptor(reject))

	err := alice.InitiateCall(context.Background(), "bob")
	assert.ErrorIs(t, err, link.ErrDeclined)
	assert.Equal(t, av.StateReady.String(), alice.Status().State)
	assert.Equal(t, av.StateReady.String(), bob.Status().State)

	_, failed := alice.sink.find(events.NoticeCallFailed)
	assert.True(t, failed)
}

func TestInitiateCallUnreachable(t *testing.T) {
	alice := startClient(t, "43000-43499")
	_, err := alice.AddContact("bob", "127.0.0.1", freePort(t), testSecret)
	require.NoError(t, err)

	err = alice.InitiateCall(context.Background(), "bob")
	assert.ErrorIs(t, err, link.ErrPeerUnreachable)
	assert.Equal(t, av.StateReady.String(), alice.Status().State)
}

func TestSecondCallRejectedWhileActive(t *testing.T) {
	alice, bob := pair(t)
	_, err := alice.AddContact("carol", "127.0.0.1", freePort(t), testSecret)
	require.NoError(t, err)

	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)

	assert.ErrorIs(t, alice.InitiateCall(context.Background(), "carol"), av.ErrCallActive)
}

func TestCallingAgainResumes(t *testing.T) {
	alice, bob := pair(t)
	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)

	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)

	require.NoError(t, bob.SendMessage([]byte("still here")))
	assert.Eventually(t, func() bool {
		got := alice.sink.received()
		return len(got) > 0 && got[len(got)-1] == "still here"
	}, waitFor, tick)
}

func TestSendFileBetweenClients(t *testing.T) {
	alice, bob := pair(t)
	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)

	content := []byte("quarterly numbers")
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	tr, err := alice.SendFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, file.DirectionOutgoing, tr.Direction)

	var notice events.Notice
	require.Eventually(t, func() bool {
		var ok bool
		notice, ok = bob.sink.find(events.NoticeFileReceived)
		return ok
	}, waitFor, tick)

	got, err := os.ReadFile(notice.Detail)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, bob.cfg.DownloadDir, filepath.Dir(notice.Detail))

	assert.Eventually(t, func() bool {
		_, ok := alice.sink.find(events.NoticeFileSent)
		return ok
	}, waitFor, tick)
	assert.Len(t, alice.Transfers(), 1)
}

func TestSendFileWithoutCall(t *testing.T) {
	alice := startClient(t, "43000-43499")
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	_, err := alice.SendFile(context.Background(), path)
	assert.ErrorIs(t, err, av.ErrNoActiveCall)
}

func TestScreenshareBetweenClients(t *testing.T) {
	alice, bob := pair(t)
	require.NoError(t, alice.InitiateCall(context.Background(), "bob"))
	require.Eventually(t, connected(alice, bob), waitFor, tick)

	require.NoError(t, alice.StartScreenshare(context.Background()))
	assert.True(t, alice.Status().Screenshare)
	assert.Eventually(t, func() bool { return bob.Status().Screenshare }, waitFor, tick)

	require.NoError(t, alice.EndScreenshare())
	assert.False(t, alice.Status().Screenshare)
	assert.Eventually(t, func() bool { return !bob.Status().Screenshare }, waitFor, tick)

	assert.ErrorIs(t, alice.EndScreenshare(), ErrNoScreenshare)
}

func TestDeviceFailureEndsBothSides(t *testing.T) {
	failing := audio.OpenerFunc(func() (audio.Device, error) { return nil, errors.New("unplugged") })
	alice, bob := pair(t, WithOpener(failing))

	err := alice.InitiateCall(context.Background(), "bob")
	assert.ErrorIs(t, err, link.ErrDeclined)
	assert.Equal(t, av.StateReady.String(), alice.Status().State)

	assert.Eventually(t, func() bool {
		_, ok := bob.sink.find(events.NoticeDeviceUnavailable)
		return ok
	}, waitFor, tick)
	assert.Equal(t, av.StateReady.String(), bob.Status().State)
}

func TestAudioTestAndEnd(t *testing.T) {
	alice := startClient(t, "43000-43499")

	require.NoError(t, alice.AudioTest())
	assert.Equal(t, av.StateTesting.String(), alice.Status().State)
	assert.ErrorIs(t, alice.AudioTest(), av.ErrCallActive)

	require.NoError(t, alice.EndCall())
	assert.Equal(t, av.StateReady.String(), alice.Status().State)
	assert.ErrorIs(t, alice.EndCall(), av.ErrNoActiveCall)
}

func TestContactsPersistAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "43000-43499")

	c, err := New(cfg, dir)
	require.NoError(t, err)
	_, err = c.AddContact("bob", "192.0.2.7", 45000, testSecret)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = New(cfg, dir)
	require.NoError(t, err)
	defer c.Close()
	require.Len(t, c.Contacts(), 1)
	assert.Equal(t, "bob", c.Contacts()[0].Nickname)
	assert.Equal(t, testSecret, c.Contacts()[0].Secret())

	require.NoError(t, c.RemoveContact("bob"))
	assert.ErrorIs(t, c.RemoveContact("bob"), contact.ErrNotFound)
}

func TestSQLiteContactStore(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "43000-43499")
	cfg.ContactStore = config.StoreSQLite
	passphrase := WithPassphrase([]byte("correct horse"))

	c, err := New(cfg, dir, passphrase)
	require.NoError(t, err)
	_, err = c.AddContact("bob", "192.0.2.7", 45000, testSecret)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.FileExists(t, filepath.Join(dir, ContactsDB))

	c, err = New(cfg, dir, passphrase)
	require.NoError(t, err)
	defer c.Close()
	require.Len(t, c.Contacts(), 1)
	assert.Equal(t, testSecret, c.Contacts()[0].Secret())
}

func TestAPIServesStatus(t *testing.T) {
	alice := startClient(t, "43000-43499")

	resp, err := http.Get("http://" + alice.APIAddr().String() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st av.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, av.StateReady.String(), st.State)
}

func TestSetInputSensitivityPersists(t *testing.T) {
	alice := startClient(t, "43000-43499")
	require.NoError(t, alice.SetInputSensitivity(-30))

	cfg, err := config.Load(alice.dataDir)
	require.NoError(t, err)
	assert.Equal(t, -30.0, cfg.InputSensitivity)
}

func TestServeRequiresListen(t *testing.T) {
	dir := t.TempDir()
	c, err := New(testConfig(t, dir, "43000-43499"), dir)
	require.NoError(t, err)
	defer c.Close()
	assert.ErrorIs(t, c.Serve(context.Background()), ErrNotRunning)
}

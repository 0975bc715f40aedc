package audiochat

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chanderlud/audio-chat/api"
	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/config"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/control"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/chanderlud/audio-chat/link"
	"github.com/chanderlud/audio-chat/metrics"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// ContactsDir holds one JSON file per contact when the JSON store is used.
	ContactsDir = "contacts"

	// ContactsDB is the SQLite contact database file name.
	ContactsDB = "contacts.db"

	// transferCheckInterval is how often stalled transfers are failed.
	transferCheckInterval = time.Second
)

// Client is one running instance: a contact directory, the single call
// session, the control port that peers dial and the local API.
type Client struct {
	cfg     config.Config
	dataDir string
	ports   transport.PortRange

	opener     audio.Opener
	pipeline   screenshare.Pipeline
	acceptor   control.Acceptor
	sinks      []events.Sink
	passphrase []byte

	registry  *prometheus.Registry
	metrics   *metrics.Recorder
	hub       *api.Hub
	sink      events.Sink
	directory *contact.Directory
	session   *av.CallSession
	files     *file.Manager
	screens   *screenshare.Session
	control   *control.Server
	api       *api.Server

	mu       sync.Mutex
	apiLn    net.Listener
	runCtx   context.Context
	closed   bool
	initLock sync.Mutex
}

// New builds a client from cfg. Contacts are loaded from dataDir but nothing
// is bound until Listen or Run.
func New(cfg config.Config, dataDir string, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		dataDir: dataDir,
		ports:   cfg.PortRange(),
		opener:  audio.NullOpener,
		runCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	c.directory = contact.NewDirectory(store)
	if err := c.directory.Load(); err != nil {
		store.Close()
		return nil, err
	}

	c.registry = metrics.NewRegistry()
	c.metrics = metrics.NewRecorder(c.registry)
	c.hub = api.NewHub()
	c.sink = events.NewMulti(append([]events.Sink{c.hub}, c.sinks...)...)
	if c.acceptor == nil {
		c.acceptor = c.hub
	}

	c.session = av.NewCallSession(
		av.WithSink(c.sink),
		av.WithMetrics(c.metrics),
		av.WithEndHook(c.onCallEnded),
	)
	if err := c.applyAudioSettings(); err != nil {
		c.directory.Close()
		return nil, err
	}

	c.files = file.NewManager()
	c.screens = screenshare.NewSession(c.pipeline)

	c.control = &control.Server{
		Port:          cfg.ControlPort,
		Directory:     c.directory,
		Session:       c.session,
		Acceptor:      c.acceptor,
		Ports:         c.ports,
		Files:         c.files,
		Screens:       c.screens,
		Opener:        c.opener,
		Sink:          c.sink,
		Metrics:       c.metrics,
		DownloadDir:   cfg.DownloadDir,
		AcceptTimeout: cfg.AcceptTimeout,
	}
	c.api = api.NewServer(c, c.hub, c.registry)

	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"data_dir":      dataDir,
		"control_port":  cfg.ControlPort,
		"audio_ports":   c.ports.String(),
		"contact_store": cfg.ContactStore,
		"contacts":      c.directory.Len(),
	}).Info("Client created")

	return c, nil
}

func (c *Client) openStore() (contact.Store, error) {
	switch c.cfg.ContactStore {
	case config.StoreSQLite:
		if err := os.MkdirAll(c.dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return contact.OpenSQLiteStore(filepath.Join(c.dataDir, ContactsDB), c.passphrase)
	default:
		return contact.NewJSONStore(filepath.Join(c.dataDir, ContactsDir))
	}
}

func (c *Client) applyAudioSettings() error {
	c.session.SetInputSensitivity(c.cfg.InputSensitivity)
	if err := c.session.SetInputVolume(c.cfg.InputVolume); err != nil {
		return err
	}
	if err := c.session.SetOutputVolume(c.cfg.OutputVolume); err != nil {
		return err
	}
	if c.cfg.UseNoiseSuppression {
		ns, err := audio.NewSpectralSuppressor(c.cfg.NoiseSuppressionLevel)
		if err != nil {
			return err
		}
		c.session.SetNoiseSuppressor(ns)
	}
	return nil
}

// Listen binds the control port and the API address.
func (c *Client) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.apiLn != nil {
		return nil
	}

	if err := c.control.Listen(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", c.cfg.APIAddress)
	if err != nil {
		return fmt.Errorf("failed to bind API address: %w", err)
	}
	c.apiLn = ln
	return nil
}

// Serve answers peers and API clients until ctx is done. Listen must have
// succeeded.
func (c *Client) Serve(ctx context.Context) error {
	c.mu.Lock()
	ln := c.apiLn
	c.runCtx = ctx
	c.mu.Unlock()
	if ln == nil {
		return ErrNotRunning
	}

	c.directory.SetStatusFunc(c.onContactStatus)
	c.directory.StartProbing(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.control.Serve(ctx) })
	g.Go(func() error { return c.api.Serve(ctx, ln) })
	g.Go(func() error {
		c.watchTransfers(ctx)
		return nil
	})

	logrus.WithFields(logrus.Fields{
		"function":     "Serve",
		"control_addr": c.control.Addr().String(),
		"api_addr":     ln.Addr().String(),
	}).Info("Client running")

	err := g.Wait()
	if c.session.State() != av.StateReady {
		_ = c.EndCall()
	}
	return err
}

// Run is Listen followed by Serve.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Listen(); err != nil {
		return err
	}
	return c.Serve(ctx)
}

// Close releases the contact store. Cancel the Serve context first.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.files.CancelAll()
	return c.directory.Close()
}

// ControlAddr returns the bound control address, or nil before Listen.
func (c *Client) ControlAddr() net.Addr {
	return c.control.Addr()
}

// APIAddr returns the bound API address, or nil before Listen.
func (c *Client) APIAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiLn == nil {
		return nil
	}
	return c.apiLn.Addr()
}

// Metrics returns the registry behind /metrics.
func (c *Client) Metrics() *prometheus.Registry {
	return c.registry
}

func (c *Client) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx
}

func (c *Client) watchTransfers(ctx context.Context) {
	ticker := time.NewTicker(transferCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.files.CheckTimeouts(); n > 0 {
				logrus.WithFields(logrus.Fields{
					"function": "watchTransfers",
					"stalled":  n,
				}).Warn("Failed stalled transfers")
			}
		}
	}
}

func (c *Client) onContactStatus(ct *contact.Contact, online bool) {
	n := 0
	for _, other := range c.directory.List() {
		if other.Online() {
			n++
		}
	}
	c.metrics.ContactsOnline(n)

	logrus.WithFields(logrus.Fields{
		"function": "onContactStatus",
		"nickname": ct.Nickname,
		"online":   online,
	}).Debug("Contact status changed")
}

// onCallEnded releases everything that rides on a call. A call that ended
// on a failure is announced to the peer, who otherwise only sees silence.
func (c *Client) onCallEnded(peer *contact.Contact, cause error) {
	c.files.CancelAll()
	if c.screens.Stop() {
		c.sink.OnNotice(events.Notice{Kind: events.NoticeScreenshareEnd, Nickname: peer.Nickname})
	}
	if cause != nil {
		go c.sayGoodbye(peer, link.ReasonCallEnd)
	}
}

func (c *Client) link(peer *contact.Contact) *link.Link {
	return link.New(peer, c.ports)
}

func (c *Client) sayGoodbye(peer *contact.Contact, reason link.Reason) {
	err := c.link(peer).SayGoodbye(context.Background(), reason)
	c.metrics.Handshake(reason.String(), result(err))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sayGoodbye",
			"nickname": peer.Nickname,
			"reason":   reason.String(),
			"error":    err.Error(),
		}).Debug("Goodbye not delivered")
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Status reports the call session.
func (c *Client) Status() av.Status {
	return c.session.Snapshot()
}

// Contacts lists the directory.
func (c *Client) Contacts() []*contact.Contact {
	return c.directory.List()
}

// AddContact validates, stores and starts probing a new contact.
func (c *Client) AddContact(nickname, host string, port uint16, secret string) (*contact.Contact, error) {
	ct, err := contact.New(nickname, host, port, secret)
	if err != nil {
		return nil, err
	}
	if err := c.directory.Add(ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// RemoveContact deletes a contact. A call with them is not affected.
func (c *Client) RemoveContact(nickname string) error {
	return c.directory.Remove(nickname)
}

// InitiateCall calls nickname, or resumes the current call with them.
func (c *Client) InitiateCall(ctx context.Context, nickname string) error {
	c.initLock.Lock()
	defer c.initLock.Unlock()

	peer, ok := c.directory.Get(nickname)
	if !ok {
		return fmt.Errorf("%w: %s", contact.ErrNotFound, nickname)
	}

	if c.session.State().Active() {
		current := c.session.Peer()
		if current == nil || current.Nickname != nickname {
			return av.ErrCallActive
		}
		return c.resume(ctx, peer)
	}

	if err := c.session.Begin(peer); err != nil {
		return err
	}
	if err := c.dial(ctx, peer); err != nil {
		c.session.Abort()
		c.sink.OnNotice(events.Notice{
			Kind:     events.NoticeCallFailed,
			Nickname: nickname,
			Detail:   err.Error(),
		})
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context, peer *contact.Contact) error {
	sendPort, receivePort, err := c.link(peer).SayHello(ctx)
	c.metrics.Handshake(transport.MessageHello.String(), result(err))
	if err != nil {
		return err
	}

	device, err := c.opener.Open()
	if err != nil {
		go c.sayGoodbye(peer, link.ReasonCallEnd)
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	conn, err := transport.DialAudio(receivePort, peer.Host, sendPort)
	if err != nil {
		_ = device.Close()
		go c.sayGoodbye(peer, link.ReasonCallEnd)
		return err
	}

	if err := c.session.Connect(conn, device); err != nil {
		_ = conn.Close()
		_ = device.Close()
		return err
	}
	return nil
}

// resume repeats the hello handshake for the current call and moves its
// audio onto the new ports.
func (c *Client) resume(ctx context.Context, peer *contact.Contact) error {
	sendPort, receivePort, err := c.link(peer).SayHello(ctx)
	c.metrics.Handshake(transport.MessageHello.String(), result(err))
	if err != nil {
		return err
	}

	conn, err := transport.DialAudio(receivePort, peer.Host, sendPort)
	if err != nil {
		return err
	}
	if err := c.session.Rebind(conn); err != nil {
		_ = conn.Close()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "resume",
		"nickname": peer.Nickname,
	}).Info("Call resumed")
	return nil
}

// EndCall hangs up, or stops an audio test.
func (c *Client) EndCall() error {
	peer := c.session.Peer()
	if err := c.session.End(); err != nil {
		return err
	}
	if peer != nil {
		c.sayGoodbye(peer, link.ReasonCallEnd)
	}
	return nil
}

// AudioTest loops the input device back to the output until EndCall.
func (c *Client) AudioTest() error {
	device, err := c.opener.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := c.session.StartTest(device); err != nil {
		_ = device.Close()
		return err
	}
	return nil
}

// SendMessage sends a chat message over the current call.
func (c *Client) SendMessage(text []byte) error {
	return c.session.SendChat(text)
}

// activePeer returns the peer of a connected or disconnected call.
func (c *Client) activePeer() (*contact.Contact, error) {
	peer := c.session.Peer()
	if peer == nil || !c.session.State().Active() {
		return nil, av.ErrNoActiveCall
	}
	return peer, nil
}

// SendFile offers the file at path to the peer and streams it in the
// background once they have bound a port for it.
func (c *Client) SendFile(ctx context.Context, path string) (*file.Transfer, error) {
	peer, err := c.activePeer()
	if err != nil {
		return nil, err
	}

	desc, err := file.FromFile(path, limits.DefaultFileChunk)
	if err != nil {
		return nil, err
	}
	if desc.Length > file.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", file.ErrFileTooLarge, desc.Length)
	}
	if len(desc.FormattedName()) > file.MaxFileNameLength {
		return nil, file.ErrFileNameTooLong
	}

	cipher, err := crypto.NewCipher(peer.Key())
	if err != nil {
		return nil, err
	}

	port, err := c.link(peer).FileTransferHandshake(ctx, desc)
	c.metrics.Handshake(transport.MessageFileTransfer.String(), result(err))
	if err != nil {
		return nil, err
	}

	t := file.NewTransfer(peer.Nickname, desc, file.DirectionOutgoing)
	c.files.Track(t)

	addr := net.JoinHostPort(peer.Host, strconv.Itoa(int(port)))
	runCtx := c.runContext()
	go func() {
		err := file.Send(runCtx, addr, cipher, path, desc, t)
		c.metrics.Transfer(t.Direction.String(), t.State().String(), t.Transferred())
		if err != nil {
			c.sink.OnNotice(events.Notice{
				Kind:     events.NoticeFileFailed,
				Nickname: peer.Nickname,
				Detail:   desc.FormattedName() + ": " + err.Error(),
			})
			return
		}
		c.sink.OnNotice(events.Notice{
			Kind:     events.NoticeFileSent,
			Nickname: peer.Nickname,
			Detail:   desc.FormattedName(),
		})
	}()

	return t, nil
}

// Transfers lists the transfers of the current call.
func (c *Client) Transfers() []*file.Transfer {
	return c.files.All()
}

// StartScreenshare offers the local screen to the peer.
func (c *Client) StartScreenshare(ctx context.Context) error {
	peer, err := c.activePeer()
	if err != nil {
		return err
	}

	salt, err := screenshare.NewSalt()
	if err != nil {
		return err
	}
	desc, err := c.link(peer).ScreenshareHandshake(ctx, salt)
	c.metrics.Handshake(transport.MessageScreenshare.String(), result(err))
	if err != nil {
		return err
	}

	if err := c.screens.StartSending(c.runContext(), desc); err != nil {
		go c.sayGoodbye(peer, link.ReasonScreenshareEnd)
		return err
	}
	if err := c.session.SetScreenshare(true); err != nil {
		c.screens.Stop()
		go c.sayGoodbye(peer, link.ReasonScreenshareEnd)
		return err
	}

	c.sink.OnNotice(events.Notice{Kind: events.NoticeScreenshareStart, Nickname: peer.Nickname})
	return nil
}

// EndScreenshare stops the screenshare in either direction.
func (c *Client) EndScreenshare() error {
	sending := c.screens.Sending()
	if !c.screens.Stop() {
		return ErrNoScreenshare
	}
	_ = c.session.SetScreenshare(false)

	peer := c.session.Peer()
	if peer == nil {
		return nil
	}
	c.sink.OnNotice(events.Notice{Kind: events.NoticeScreenshareEnd, Nickname: peer.Nickname})
	if sending {
		c.sayGoodbye(peer, link.ReasonScreenshareEnd)
	}
	return nil
}

// SetMuted sends silence instead of captured audio while muted.
func (c *Client) SetMuted(muted bool) {
	c.session.SetMuted(muted)
}

// SetDeafened plays silence instead of received audio while deafened.
func (c *Client) SetDeafened(deafened bool) {
	c.session.SetDeafened(deafened)
}

// SetInputSensitivity changes the silence threshold and persists it.
func (c *Client) SetInputSensitivity(db float64) error {
	c.session.SetInputSensitivity(db)
	return c.updateConfig(func(cfg *config.Config) { cfg.InputSensitivity = db })
}

func (c *Client) updateConfig(apply func(*config.Config)) error {
	c.mu.Lock()
	apply(&c.cfg)
	cfg := c.cfg
	c.mu.Unlock()

	return config.Save(c.dataDir, cfg)
}

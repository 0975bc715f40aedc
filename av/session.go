package av

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/buffer"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/chanderlud/audio-chat/metrics"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultSensitivityDB is the silence threshold used until configured.
const DefaultSensitivityDB = -50.0

// EndFunc observes the end of a peer call. cause is nil for an orderly end.
type EndFunc func(peer *contact.Contact, cause error)

// Option configures a CallSession.
type Option func(*CallSession)

// WithSink routes status changes, chat messages and notices to sink.
func WithSink(sink events.Sink) Option {
	return func(s *CallSession) { s.sink = events.OrNop(sink) }
}

// WithMetrics records datagram and state metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *CallSession) { s.metrics = m }
}

// WithEndHook registers fn to run after every peer call ends.
func WithEndHook(fn EndFunc) Option {
	return func(s *CallSession) {
		if fn != nil {
			s.endHooks = append(s.endHooks, fn)
		}
	}
}

// CallSession is the single call a client can hold at a time.
type CallSession struct {
	mu          sync.Mutex
	state       State
	peer        *contact.Contact
	key         []byte
	cipher      *crypto.Cipher
	conn        transport.AudioConn
	screenshare bool
	run         *callRun
	suppressor  audio.NoiseSuppressor

	muted    atomic.Bool
	deafened atomic.Bool

	inputGain  *audio.Gain
	outputGain *audio.Gain
	detector   *audio.SilenceDetector

	sink     events.Sink
	metrics  *metrics.Recorder
	endHooks []EndFunc
}

// callRun holds what one call or audio test owns while its loops run.
type callRun struct {
	device   audio.Device
	cipher   *crypto.Cipher
	nickname string
	outbound *buffer.Ring
	inbound  *buffer.Ring
	chat     *buffer.MessageAssembler
	queued   chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newCallRun(device audio.Device, cipher *crypto.Cipher, nickname string) *callRun {
	return &callRun{
		device:   device,
		cipher:   cipher,
		nickname: nickname,
		outbound: buffer.NewRing(limits.MaxLatencyBytes),
		inbound:  buffer.NewRing(limits.MaxLatencyBytes),
		chat:     buffer.NewMessageAssembler(limits.FrameSize),
		queued:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// stop cancels the loops, closes the resources they block on and waits for
// them to return.
func (r *callRun) stop(conn transport.AudioConn) {
	r.stopOnce.Do(func() {
		r.cancel()
		if conn != nil {
			_ = conn.Close()
		}
		if err := r.device.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "callRun.stop",
				"error":    err.Error(),
			}).Warn("Failed to close audio device")
		}
	})
	<-r.done
}

// NewCallSession creates a session in the Ready state.
func NewCallSession(opts ...Option) *CallSession {
	s := &CallSession{
		state:    StateReady,
		detector: audio.NewSilenceDetector(DefaultSensitivityDB),
		sink:     events.Nop{},
	}
	s.inputGain, _ = audio.NewGain(0)
	s.outputGain, _ = audio.NewGain(0)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// setState applies a transition from the table. Callers hold mu and report
// the change to the sink after unlocking.
func (s *CallSession) setState(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
	}

	logrus.WithFields(logrus.Fields{
		"function": "CallSession.setState",
		"from":     s.state.String(),
		"to":       to.String(),
	}).Debug("Call state transition")

	s.state = to
	s.metrics.CallState(to.String())
	return nil
}

// Begin reserves the session for a call with c and derives the session key.
func (s *CallSession) Begin(c *contact.Contact) error {
	if c == nil {
		return contact.ErrNotFound
	}

	key := c.Key()
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		crypto.ZeroBytes(key)
		return ErrCallActive
	}
	_ = s.setState(StateConnecting)
	s.peer = c
	s.key = key
	s.cipher = cipher
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Begin",
		"nickname": c.Nickname,
		"host":     c.Host,
	}).Info("Call setup started")

	s.sink.OnStatusChange(StateConnecting.String())
	return nil
}

// Abort returns a Connecting session to Ready. It does nothing in any other state.
func (s *CallSession) Abort() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	_ = s.setState(StateReady)
	s.clearPeer()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Abort",
	}).Info("Call setup aborted")

	s.sink.OnStatusChange(StateReady.String())
}

// clearPeer wipes the session key. Callers hold mu.
func (s *CallSession) clearPeer() {
	crypto.ZeroBytes(s.key)
	s.key = nil
	s.cipher = nil
	s.peer = nil
	s.screenshare = false
}

// Connect binds the exchanged UDP socket and the opened device and starts the
// four call loops. The session must be Connecting.
func (s *CallSession) Connect(conn transport.AudioConn, device audio.Device) error {
	if conn == nil {
		return ErrNilConn
	}
	if device == nil {
		return ErrNilDevice
	}

	s.mu.Lock()
	if err := s.setState(StateConnected); err != nil {
		s.mu.Unlock()
		return err
	}
	s.conn = conn
	run := newCallRun(device, s.cipher, s.peer.Nickname)
	s.run = run
	s.mu.Unlock()

	s.start(run,
		s.capture(run, run.queue, func() { _ = s.send(run.cipher, crypto.SilenceMarker{}) }),
		s.broadcast(run),
		s.receive(run),
		s.playback(run),
	)

	logrus.WithFields(logrus.Fields{
		"function":    "Connect",
		"nickname":    run.nickname,
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Call connected")

	s.sink.OnStatusChange(StateConnected.String())
	return nil
}

// StartTest plays the captured input back through the output so the user
// can check levels. No peer or socket is involved.
func (s *CallSession) StartTest(device audio.Device) error {
	if device == nil {
		return ErrNilDevice
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrCallActive
	}
	_ = s.setState(StateTesting)
	run := newCallRun(device, nil, "")
	s.run = run
	s.mu.Unlock()

	loopback := func(frame []byte) { _, _ = run.inbound.Write(frame) }
	s.start(run,
		s.capture(run, loopback, func() { loopback(audio.Silence()) }),
		s.playback(run),
	)

	logrus.WithFields(logrus.Fields{
		"function": "StartTest",
	}).Info("Audio test started")

	s.sink.OnStatusChange(StateTesting.String())
	return nil
}

// start runs loops under one errgroup. A loop failure ends the run.
func (s *CallSession) start(run *callRun, loops ...func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		g.Go(func() error { return loop(gctx) })
	}

	go func() {
		err := g.Wait()
		close(run.done)
		if err != nil && ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{
				"function": "CallSession.start",
				"error":    err.Error(),
			}).Error("Call loop failed")
			_ = s.finish(run, err)
		}
	}()
}

// Rebind swaps in the socket from a resume handshake. A Disconnected call
// returns to Connected with a reconnected notice.
func (s *CallSession) Rebind(conn transport.AudioConn) error {
	if conn == nil {
		return ErrNilConn
	}

	s.mu.Lock()
	if !s.state.Active() || s.run == nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	old := s.conn
	s.conn = conn
	resumed := s.state == StateDisconnected
	if resumed {
		_ = s.setState(StateConnected)
	}
	nickname := s.run.nickname
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Rebind",
		"nickname":    nickname,
		"remote_addr": conn.RemoteAddr().String(),
		"resumed":     resumed,
	}).Info("Audio socket rebound")

	if resumed {
		s.announceReconnect(nickname)
	}
	return nil
}

// End stops the running call or audio test and returns the session to Ready.
func (s *CallSession) End() error {
	return s.finish(nil, nil)
}

// finish tears down run, or the current run when run is nil.
func (s *CallSession) finish(run *callRun, cause error) error {
	s.mu.Lock()
	if run != nil && s.run != run {
		s.mu.Unlock()
		return nil
	}
	from := s.state
	if err := s.setState(StateEnded); err != nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	current := s.run
	conn := s.conn
	peer := s.peer
	s.run = nil
	s.conn = nil
	s.mu.Unlock()

	s.sink.OnStatusChange(StateEnded.String())

	if current != nil {
		current.stop(conn)
	}

	s.mu.Lock()
	s.clearPeer()
	_ = s.setState(StateReady)
	hooks := s.endHooks
	s.mu.Unlock()

	fields := logrus.Fields{
		"function": "End",
		"from":     from.String(),
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	logrus.WithFields(fields).Info("Call ended")

	s.sink.OnStatusChange(StateReady.String())

	if from == StateTesting || peer == nil {
		return nil
	}

	notice := events.Notice{Kind: events.NoticeCallEnded, Nickname: peer.Nickname}
	if cause != nil {
		notice.Detail = cause.Error()
	}
	s.sink.OnNotice(notice)

	for _, hook := range hooks {
		hook(peer, cause)
	}
	return nil
}

// SendChat sends text as a run of chat chunks over the call socket.
func (s *CallSession) SendChat(text []byte) error {
	if err := limits.ValidateMessageSize(text, limits.MaxPlaintext); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.state.Active() || s.run == nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	cipher := s.run.cipher
	s.mu.Unlock()

	for _, chunk := range buffer.Split(text, limits.FrameSize) {
		if err := s.send(cipher, crypto.ChatChunk{Text: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// State returns the current state.
func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Peer returns the contact of the current call, or nil.
func (s *CallSession) Peer() *contact.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Key returns a copy of the session key, or nil outside a call.
func (s *CallSession) Key() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil
	}
	return append([]byte(nil), s.key...)
}

// Cipher returns the framed cipher of the current call, or nil.
func (s *CallSession) Cipher() *crypto.Cipher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cipher
}

// ScreenshareActive reports whether a screenshare is running in the current call.
func (s *CallSession) ScreenshareActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshare
}

// SetScreenshare records whether a screenshare rides on the current call.
func (s *CallSession) SetScreenshare(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active && !s.state.Active() {
		return ErrNoActiveCall
	}
	s.screenshare = active
	return nil
}

// SetMuted replaces captured audio with silence markers while true.
func (s *CallSession) SetMuted(muted bool) { s.muted.Store(muted) }

// Muted reports whether captured audio is being replaced with silence.
func (s *CallSession) Muted() bool { return s.muted.Load() }

// SetDeafened plays silence instead of the peer's audio while true.
func (s *CallSession) SetDeafened(deafened bool) { s.deafened.Store(deafened) }

// Deafened reports whether playback is silenced.
func (s *CallSession) Deafened() bool { return s.deafened.Load() }

// SetInputVolume sets the capture gain in dB.
func (s *CallSession) SetInputVolume(db float64) error { return s.inputGain.SetDB(db) }

// SetOutputVolume sets the playback gain in dB.
func (s *CallSession) SetOutputVolume(db float64) error { return s.outputGain.SetDB(db) }

// SetInputSensitivity sets the silence threshold in dBFS.
func (s *CallSession) SetInputSensitivity(db float64) { s.detector.SetThreshold(db) }

// SetNoiseSuppressor installs ns for captured frames. nil disables suppression.
func (s *CallSession) SetNoiseSuppressor(ns audio.NoiseSuppressor) {
	s.mu.Lock()
	s.suppressor = ns
	s.mu.Unlock()
}

func (s *CallSession) noiseSuppressor() audio.NoiseSuppressor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressor
}

// Status is a point-in-time view of the session for UIs.
type Status struct {
	State       string `json:"state"`
	Peer        string `json:"peer,omitempty"`
	Muted       bool   `json:"muted"`
	Deafened    bool   `json:"deafened"`
	Screenshare bool   `json:"screenshare"`
}

// Snapshot returns the current Status.
func (s *CallSession) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:       s.state.String(),
		Muted:       s.muted.Load(),
		Deafened:    s.deafened.Load(),
		Screenshare: s.screenshare,
	}
	if s.peer != nil {
		st.Peer = s.peer.Nickname
	}
	return st
}

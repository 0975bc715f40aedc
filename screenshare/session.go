package screenshare

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pipeline drives the external media processes. Both methods launch work that
// runs until ctx is cancelled and return once it has started.
type Pipeline interface {
	// StartCapture captures the screen and streams it to desc.Host:desc.Port.
	StartCapture(ctx context.Context, desc Description) error
	// StartPlayback shows the stream described by desc.
	StartPlayback(ctx context.Context, desc Description) error
}

// LogPipeline is a Pipeline that only logs. It is the default when no media
// tooling is configured.
type LogPipeline struct{}

func (LogPipeline) StartCapture(ctx context.Context, desc Description) error {
	logrus.WithFields(logrus.Fields{
		"function": "LogPipeline.StartCapture",
		"target":   net.JoinHostPort(desc.Host, strconv.Itoa(int(desc.Port))),
	}).Info("Screen capture requested")
	return nil
}

func (LogPipeline) StartPlayback(ctx context.Context, desc Description) error {
	logrus.WithFields(logrus.Fields{
		"function": "LogPipeline.StartPlayback",
		"port":     desc.Port,
	}).Info("Screen playback requested")
	return nil
}

// Session tracks the single screenshare of a call.
type Session struct {
	mu       sync.Mutex
	pipeline Pipeline
	active   bool
	sending  bool
	cancel   context.CancelFunc
}

// NewSession creates an inactive session. A nil pipeline uses LogPipeline.
func NewSession(p Pipeline) *Session {
	if p == nil {
		p = LogPipeline{}
	}
	return &Session{pipeline: p}
}

// StartSending launches capture towards the viewer described by desc.
func (s *Session) StartSending(ctx context.Context, desc Description) error {
	return s.start(ctx, desc, true)
}

// StartReceiving launches playback of the stream described by desc.
func (s *Session) StartReceiving(ctx context.Context, desc Description) error {
	return s.start(ctx, desc, false)
}

func (s *Session) start(ctx context.Context, desc Description, sending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)

	var err error
	if sending {
		err = s.pipeline.StartCapture(ctx, desc)
	} else {
		err = s.pipeline.StartPlayback(ctx, desc)
	}
	if err != nil {
		cancel()
		s.active = false
		s.cancel = nil
		return err
	}

	s.active = true
	s.sending = sending
	s.cancel = cancel

	logrus.WithFields(logrus.Fields{
		"function": "Session.start",
		"sending":  sending,
		"port":     desc.Port,
	}).Info("Screenshare started")

	return nil
}

// Stop ends the share and reports whether one was active.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	was := s.active
	s.active = false
	s.sending = false

	if was {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Stop",
		}).Info("Screenshare stopped")
	}
	return was
}

// Active reports whether a share is running in either direction.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Sending reports whether the local side is the sharer.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.sending
}

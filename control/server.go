package control

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/metrics"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
)

const (
	// AcceptPollInterval bounds each Accept so Serve observes shutdown.
	AcceptPollInterval = 2 * time.Second

	// DefaultAcceptTimeout bounds the incoming-call prompt. No answer rejects.
	DefaultAcceptTimeout = 10 * time.Second

	// DefaultHandshakeTimeout bounds a handshake once it is under way.
	DefaultHandshakeTimeout = 10 * time.Second
)

// Acceptor decides whether to take an incoming call. It must return false
// once ctx is done.
type Acceptor interface {
	Accept(ctx context.Context, nickname string) bool
}

// AcceptorFunc adapts a function to the Acceptor interface.
type AcceptorFunc func(ctx context.Context, nickname string) bool

// Accept calls f.
func (f AcceptorFunc) Accept(ctx context.Context, nickname string) bool { return f(ctx, nickname) }

// AcceptAll answers every call.
var AcceptAll = AcceptorFunc(func(context.Context, string) bool { return true })

// Server answers control connections for the client's single call session.
type Server struct {
	Port      uint16
	Directory *contact.Directory
	Session   *av.CallSession
	Acceptor  Acceptor
	Ports     transport.PortRange
	Files     *file.Manager
	Screens   *screenshare.Session
	Opener    audio.Opener
	Sink      events.Sink
	Metrics   *metrics.Recorder

	// DownloadDir receives incoming files.
	DownloadDir string

	// Goodbye notifies a peer whose accepted call could not start. It
	// defaults to sending a call-end goodbye over a new link.
	Goodbye func(ctx context.Context, peer *contact.Contact)

	AcceptTimeout    time.Duration
	HandshakeTimeout time.Duration

	mu       sync.Mutex
	listener *net.TCPListener
	wg       sync.WaitGroup
}

// Listen binds the control port. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := transport.ListenControl(s.Port)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.Listen",
			"port":     s.Port,
			"error":    err.Error(),
		}).Error("Failed to bind control port")
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts control connections until ctx is done, then waits for
// in-flight handlers and incoming transfers.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()
	defer ln.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Server.Serve",
		"addr":     ln.Addr().String(),
	}).Info("Control server listening")

	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = ln.SetDeadline(time.Now().Add(AcceptPollInterval))

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "Server.Serve",
				"error":    err.Error(),
			}).Warn("Control accept failed")
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) sink() events.Sink {
	return events.OrNop(s.Sink)
}

func (s *Server) acceptTimeout() time.Duration {
	if s.AcceptTimeout > 0 {
		return s.AcceptTimeout
	}
	return DefaultAcceptTimeout
}

func (s *Server) handshakeDeadline() time.Time {
	timeout := s.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return time.Now().Add(timeout)
}

// handle runs one control exchange. Errors are logged and never stop Serve.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	host := transport.HostOf(conn.RemoteAddr())
	peer, ok := s.resolvePeer(host)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Server.handle",
			"host":     host,
		}).Debug("Ignoring control connection from unknown host")
		return
	}

	_ = conn.SetDeadline(s.handshakeDeadline())
	msg, err := transport.ReadControlPacket(conn)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.handle",
			"nickname": peer.Nickname,
			"error":    err.Error(),
		}).Debug("Failed to read control packet")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Server.handle",
		"nickname": peer.Nickname,
		"message":  msg.String(),
	}).Debug("Control message received")

	switch msg {
	case transport.MessageHello:
		err = s.handleHello(ctx, conn, peer)
	case transport.MessageGoodbye:
		err = s.handleGoodbye(peer)
	case transport.MessageScreenshare:
		err = s.handleScreenshare(ctx, conn, peer)
	case transport.MessageScreenshareGoodbye:
		err = s.handleScreenshareGoodbye(peer)
	case transport.MessageFileTransfer:
		err = s.handleFileTransfer(ctx, conn, peer)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Server.handle",
			"nickname": peer.Nickname,
			"message":  msg.String(),
		}).Warn("Ignoring unknown control message")
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		logrus.WithFields(logrus.Fields{
			"function": "Server.handle",
			"nickname": peer.Nickname,
			"message":  msg.String(),
			"error":    err.Error(),
		}).Warn("Control exchange failed")
	}
	s.Metrics.Handshake(msg.String(), result)
}

// resolvePeer maps a connection's host to a contact. The active call's peer
// wins when its host matches, since several contacts may share one host.
func (s *Server) resolvePeer(host string) (*contact.Contact, bool) {
	if s.Session.State().Active() {
		if current := s.Session.Peer(); current != nil && current.Host == host {
			return current, true
		}
	}
	return s.Directory.ByHost(host)
}

// currentPeer reports whether peer owns the active call.
func (s *Server) currentPeer(peer *contact.Contact) bool {
	if !s.Session.State().Active() {
		return false
	}
	current := s.Session.Peer()
	return current != nil && current.Nickname == peer.Nickname
}

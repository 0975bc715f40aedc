package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/link"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
)

// transferBindAttempts bounds the random port choices tried for one transfer.
const transferBindAttempts = 8

// handleHello answers a new call or resumes the current one.
func (s *Server) handleHello(ctx context.Context, conn net.Conn, peer *contact.Contact) error {
	if s.Session.State().Active() {
		if !s.currentPeer(peer) {
			return fmt.Errorf("%w: hello from %s", ErrPeerMismatch, peer.Nickname)
		}
		return s.resume(conn, peer)
	}
	return s.answer(ctx, conn, peer)
}

func (s *Server) answer(ctx context.Context, conn net.Conn, peer *contact.Contact) error {
	if state := s.Session.State(); state != av.StateReady {
		return fmt.Errorf("%w: session is %s", av.ErrCallActive, state)
	}

	s.sink().OnNotice(events.Notice{Kind: events.NoticeIncomingCall, Nickname: peer.Nickname})

	_ = conn.SetDeadline(time.Now().Add(s.acceptTimeout() + DefaultHandshakeTimeout))
	prompt, cancel := context.WithTimeout(ctx, s.acceptTimeout())
	accepted := s.Acceptor != nil && s.Acceptor.Accept(prompt, peer.Nickname)
	cancel()

	if !accepted {
		logrus.WithFields(logrus.Fields{
			"function": "Server.answer",
			"nickname": peer.Nickname,
		}).Info("Incoming call declined")
		return nil
	}

	if err := s.Session.Begin(peer); err != nil {
		return err
	}

	device, err := s.openDevice()
	if err != nil {
		s.Session.Abort()
		conn.Close()
		s.sink().OnNotice(events.Notice{
			Kind:     events.NoticeDeviceUnavailable,
			Nickname: peer.Nickname,
			Detail:   err.Error(),
		})
		s.goodbye(ctx, peer)
		return err
	}

	_ = conn.SetDeadline(s.handshakeDeadline())
	audioConn, err := s.exchangePorts(conn, peer)
	if err != nil {
		s.Session.Abort()
		_ = device.Close()
		s.sink().OnNotice(events.Notice{
			Kind:     events.NoticeCallFailed,
			Nickname: peer.Nickname,
			Detail:   err.Error(),
		})
		return err
	}

	if err := s.Session.Connect(audioConn, device); err != nil {
		_ = audioConn.Close()
		_ = device.Close()
		s.Session.Abort()
		return err
	}
	return nil
}

func (s *Server) openDevice() (audio.Device, error) {
	opener := s.Opener
	if opener == nil {
		opener = audio.NullOpener
	}
	device, err := opener.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	return device, nil
}

func (s *Server) goodbye(ctx context.Context, peer *contact.Contact) {
	if s.Goodbye != nil {
		s.Goodbye(ctx, peer)
		return
	}
	if err := link.New(peer, s.Ports).SayGoodbye(ctx, link.ReasonCallEnd); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.goodbye",
			"nickname": peer.Nickname,
			"error":    err.Error(),
		}).Debug("Goodbye not delivered")
	}
}

// resume rebinds the current call to freshly exchanged ports without prompting.
func (s *Server) resume(conn net.Conn, peer *contact.Contact) error {
	audioConn, err := s.exchangePorts(conn, peer)
	if err != nil {
		return err
	}
	if err := s.Session.Rebind(audioConn); err != nil {
		_ = audioConn.Close()
		return err
	}
	return nil
}

// exchangePorts announces a local receive port, reads the peer's, and binds
// the call socket between them.
func (s *Server) exchangePorts(conn net.Conn, peer *contact.Contact) (transport.AudioConn, error) {
	cipher, err := peerCipher(peer)
	if err != nil {
		return nil, err
	}

	receivePort := s.Ports.Random()
	if err := transport.WriteFrame(conn, cipher, crypto.HandshakePort{Port: receivePort}); err != nil {
		return nil, err
	}
	sendPort, err := transport.ReadPortFrame(conn, cipher)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Server.exchangePorts",
		"nickname":     peer.Nickname,
		"send_port":    sendPort,
		"receive_port": receivePort,
	}).Debug("Audio ports exchanged")

	return transport.DialAudio(receivePort, peer.Host, sendPort)
}

func peerCipher(peer *contact.Contact) (*crypto.Cipher, error) {
	key := peer.Key()
	defer crypto.ZeroBytes(key)
	return crypto.NewCipher(key)
}

func (s *Server) handleGoodbye(peer *contact.Contact) error {
	if !s.currentPeer(peer) {
		return fmt.Errorf("%w: goodbye from %s", ErrPeerMismatch, peer.Nickname)
	}
	return s.Session.End()
}

func (s *Server) handleScreenshare(ctx context.Context, conn net.Conn, peer *contact.Contact) error {
	if !s.currentPeer(peer) {
		return fmt.Errorf("%w: screenshare from %s", ErrPeerMismatch, peer.Nickname)
	}

	cipher, err := peerCipher(peer)
	if err != nil {
		return err
	}

	port := s.Ports.Random()
	if err := transport.WriteFrame(conn, cipher, crypto.HandshakePort{Port: port}); err != nil {
		return err
	}
	blob, err := transport.ReadBlobFrame(conn, cipher)
	if err != nil {
		return err
	}

	desc, err := screenshare.ParseDescription(blob)
	if err != nil {
		return err
	}
	if desc.Port != port {
		return fmt.Errorf("%w: offered port %d, announced %d", screenshare.ErrMalformedHandshake, desc.Port, port)
	}

	if err := s.Screens.StartReceiving(ctx, desc); err != nil {
		return err
	}
	if err := s.Session.SetScreenshare(true); err != nil {
		s.Screens.Stop()
		return err
	}

	s.sink().OnNotice(events.Notice{Kind: events.NoticeScreenshareStart, Nickname: peer.Nickname})
	return nil
}

func (s *Server) handleScreenshareGoodbye(peer *contact.Contact) error {
	if !s.currentPeer(peer) {
		return fmt.Errorf("%w: screenshare goodbye from %s", ErrPeerMismatch, peer.Nickname)
	}

	s.Screens.Stop()
	_ = s.Session.SetScreenshare(false)
	s.sink().OnNotice(events.Notice{Kind: events.NoticeScreenshareEnd, Nickname: peer.Nickname})
	return nil
}

func (s *Server) handleFileTransfer(ctx context.Context, conn net.Conn, peer *contact.Contact) error {
	if !s.currentPeer(peer) {
		return fmt.Errorf("%w: file transfer from %s", ErrPeerMismatch, peer.Nickname)
	}

	cipher, err := peerCipher(peer)
	if err != nil {
		return err
	}

	ln, port, err := s.bindTransferPort()
	if err != nil {
		return err
	}

	if err := transport.WriteFrame(conn, cipher, crypto.HandshakePort{Port: port}); err != nil {
		ln.Close()
		return err
	}
	blob, err := transport.ReadBlobFrame(conn, cipher)
	if err != nil {
		ln.Close()
		return err
	}
	desc, err := file.FromHandshake(blob)
	if err != nil {
		ln.Close()
		return err
	}

	rx, err := file.NewReceiver(ln, peer.Host, cipher, desc, s.DownloadDir)
	if err != nil {
		return err
	}
	if s.Files != nil {
		s.Files.Track(rx.Transfer)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Server.handleFileTransfer",
		"nickname":    peer.Nickname,
		"transfer_id": rx.Transfer.ID.String(),
		"file_name":   desc.FormattedName(),
		"file_size":   desc.Length,
		"port":        port,
	}).Info("Incoming file transfer")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.receiveFile(ctx, rx, peer)
	}()
	return nil
}

func (s *Server) bindTransferPort() (*net.TCPListener, uint16, error) {
	for range transferBindAttempts {
		port := s.Ports.Random()
		ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: int(port)})
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("%w in %s", ErrNoTransferPort, s.Ports)
}

func (s *Server) receiveFile(ctx context.Context, rx *file.Receiver, peer *contact.Contact) {
	t := rx.Transfer
	path, err := rx.Receive(ctx)
	if err != nil {
		s.Metrics.Transfer(t.Direction.String(), t.State().String(), t.Transferred())
		s.sink().OnNotice(events.Notice{
			Kind:     events.NoticeFileFailed,
			Nickname: peer.Nickname,
			Detail:   t.Descriptor.FormattedName() + ": " + err.Error(),
		})
		return
	}

	s.Metrics.Transfer(t.Direction.String(), t.State().String(), t.Transferred())
	s.sink().OnNotice(events.Notice{
		Kind:     events.NoticeFileReceived,
		Nickname: peer.Nickname,
		Detail:   path,
	})
}

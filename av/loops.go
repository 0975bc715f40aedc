package av

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/buffer"
	"github.com/chanderlud/audio-chat/crypto"
	"github.com/chanderlud/audio-chat/events"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/chanderlud/audio-chat/transport"
	"github.com/sirupsen/logrus"
)

// starvationIdle is how long playback waits when the inbound buffer is short
// of a frame.
const starvationIdle = 5 * limits.FrameDuration

// trimLatency drops everything but the newest frame once ring holds more
// than MaxLatencyBytes. It returns the number of bytes dropped.
func trimLatency(ring *buffer.Ring) int {
	if ring.Available() <= limits.MaxLatencyBytes {
		return 0
	}
	return ring.TrimTo(limits.FrameSize)
}

// queue buffers captured audio for the broadcast loop.
func (r *callRun) queue(frame []byte) {
	_, _ = r.outbound.Write(frame)
	trimLatency(r.outbound)
	select {
	case r.queued <- struct{}{}:
	default:
	}
}

// capture reads the device and hands each processed frame to deliver, or
// calls silence when the frame is muted or part of a quiet streak.
func (s *CallSession) capture(run *callRun, deliver func([]byte), silence func()) func(context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			frame, err := run.device.ReadFrame(limits.FrameSize)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("capture: %w: %w", audio.ErrDeviceUnavailable, err)
			}

			if ns := s.noiseSuppressor(); ns != nil {
				frame = ns.Process(frame)
			}

			quiet := s.detector.Silent(frame)
			if quiet || s.muted.Load() {
				silence()
				continue
			}

			deliver(s.inputGain.Apply(frame))
		}
		return nil
	}
}

// broadcast sends queued audio one frame per datagram.
func (s *CallSession) broadcast(run *callRun) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-run.queued:
			}

			for run.outbound.Available() >= limits.FrameSize {
				frame := run.outbound.Next(limits.FrameSize)
				_ = s.send(run.cipher, crypto.AudioFrame{PCM: frame})
			}
		}
	}
}

// receive decodes datagrams from the current socket. Authentication failures
// drop the datagram. Read errors, timeouts included, mark the call
// Disconnected; the next good datagram reconnects it.
func (s *CallSession) receive(run *callRun) func(context.Context) error {
	return func(ctx context.Context) error {
		buf := make([]byte, limits.MaxDatagram)
		for ctx.Err() == nil {
			conn := s.currentConn()
			if conn == nil {
				return nil
			}

			_ = conn.SetReadDeadline(time.Now().Add(transport.AudioReadTimeout))
			n, err := conn.Read(buf)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.disconnected(conn, err)
				if !errors.Is(err, os.ErrDeadlineExceeded) {
					idle(ctx, starvationIdle)
				}
				continue
			}

			frame, err := run.cipher.DecodeFrame(buf[:n])
			if err != nil {
				if errors.Is(err, crypto.ErrAuthentication) {
					s.metrics.AuthFailure("audio")
				}
				logrus.WithFields(logrus.Fields{
					"function": "receive",
					"size":     n,
					"error":    err.Error(),
				}).Debug("Dropping datagram")
				continue
			}

			s.metrics.DatagramReceived(frame.Kind().String())
			s.reconnected(conn)
			s.dispatch(run, frame)
		}
		return nil
	}
}

func (s *CallSession) dispatch(run *callRun, frame crypto.Frame) {
	switch f := frame.(type) {
	case crypto.AudioFrame:
		_, _ = run.inbound.Write(f.PCM)
	case crypto.SilenceMarker:
		_, _ = run.inbound.Write(audio.Silence())
	case crypto.ChatChunk:
		if msg, ok := run.chat.Add(f.Text); ok {
			s.sink.OnMessage(run.nickname, msg)
		}
	default:
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"kind":     frame.Kind().String(),
		}).Debug("Ignoring unexpected frame on audio channel")
	}
}

// playback drains the inbound buffer to the device. A buffer past the
// latency bound is cut back to its newest frame first.
func (s *CallSession) playback(run *callRun) func(context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			if dropped := trimLatency(run.inbound); dropped > 0 {
				s.metrics.BufferTrim("inbound", dropped)
				logrus.WithFields(logrus.Fields{
					"function": "playback",
					"dropped":  dropped,
				}).Debug("Trimmed inbound audio")
			}

			if run.inbound.Available() < limits.FrameSize {
				idle(ctx, starvationIdle)
				continue
			}

			frame := run.inbound.Next(limits.FrameSize)
			if s.deafened.Load() {
				frame = audio.Silence()
			} else {
				frame = s.outputGain.Apply(frame)
			}

			if err := run.device.WriteFrame(frame); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("playback: %w: %w", audio.ErrDeviceUnavailable, err)
			}
		}
		return nil
	}
}

// send encodes frame and writes it to the current socket. A write failure
// marks the call Disconnected.
func (s *CallSession) send(cipher *crypto.Cipher, frame crypto.Frame) error {
	conn := s.currentConn()
	if conn == nil || cipher == nil {
		return ErrNoActiveCall
	}

	wire, err := cipher.EncodeFrame(frame)
	if err != nil {
		return err
	}

	if _, err := conn.Write(wire); err != nil {
		s.disconnected(conn, err)
		return err
	}

	s.metrics.DatagramSent(frame.Kind().String())
	return nil
}

func (s *CallSession) currentConn() transport.AudioConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// disconnected moves a Connected call to Disconnected when conn is still the
// call's socket. Errors from a socket replaced by Rebind are ignored.
func (s *CallSession) disconnected(conn transport.AudioConn, cause error) {
	s.mu.Lock()
	if conn != s.conn || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	_ = s.setState(StateDisconnected)
	nickname := s.run.nickname
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "disconnected",
		"nickname": nickname,
		"error":    cause.Error(),
	}).Warn("Call disconnected")

	s.metrics.Disconnect()
	s.sink.OnStatusChange(StateDisconnected.String())
	s.sink.OnNotice(events.Notice{
		Kind:     events.NoticeDisconnected,
		Nickname: nickname,
		Detail:   cause.Error(),
	})
}

// reconnected moves a Disconnected call back to Connected after a good datagram.
func (s *CallSession) reconnected(conn transport.AudioConn) {
	s.mu.Lock()
	if conn != s.conn || s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	_ = s.setState(StateConnected)
	nickname := s.run.nickname
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "reconnected",
		"nickname": nickname,
	}).Info("Call reconnected")

	s.announceReconnect(nickname)
}

func (s *CallSession) announceReconnect(nickname string) {
	s.metrics.Reconnect()
	s.sink.OnStatusChange(StateConnected.String())
	s.sink.OnNotice(events.Notice{Kind: events.NoticeReconnected, Nickname: nickname})
}

// idle waits d or until ctx is done.
func idle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

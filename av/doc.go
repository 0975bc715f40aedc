// Package av runs the live part of a call: the CallSession state machine and
// the goroutines that move audio between the local device and the peer.
//
// # State Machine
//
// A client owns exactly one [CallSession]. Its state moves through a fixed
// transition table:
//
//	Ready ──Begin──▶ Connecting ──Connect──▶ Connected ◀──▶ Disconnected
//	  ▲                  │                      │               │
//	  └──────Abort───────┘                      └─────End───────┴──▶ Ended ──▶ Ready
//	Ready ──StartTest──▶ Testing ──End──▶ Ended ──▶ Ready
//
// Transitions are validated in one place and rejected with
// [ErrInvalidTransition], so a second call cannot start while one is active.
//
// # Loops
//
// While a call runs, four goroutines share an errgroup:
//
//   - capture reads frames from the device, suppresses noise, detects
//     silence, applies input gain and queues audio for sending
//   - broadcast drains the outbound buffer into encrypted datagrams
//   - receive decodes datagrams into the inbound buffer or the chat assembler
//   - playback drains the inbound buffer to the device
//
// Any socket error, including three seconds without a datagram, moves the
// call to Disconnected instead of ending it. The next good datagram, or a
// [CallSession.Rebind] after a resume handshake, restores Connected. Each
// direction emits a single notice through the configured events.Sink.
//
// # Example
//
//	session := av.NewCallSession(av.WithSink(sink))
//	if err := session.Begin(peer); err != nil {
//	    return err
//	}
//	conn, err := transport.DialAudio(receivePort, peer.Host, sendPort)
//	if err != nil {
//	    session.Abort()
//	    return err
//	}
//	return session.Connect(conn, device)
package av

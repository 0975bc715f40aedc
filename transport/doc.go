// Package transport provides the sockets a call runs over: the TCP control
// channel used for handshakes, the connected UDP socket carrying framed audio,
// and the TCP streams used for file transfers.
//
// # Control channel
//
// Every control connection starts with a single message-type byte written by
// the initiator. Handshakes then exchange framed port announcements of exactly
// [limits.PortFrameSize] bytes, optionally followed by an opaque framed blob
// that the sender terminates by closing the connection:
//
//	conn, err := transport.DialControl(ctx, contact.Addr())
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//	if err := transport.WriteControl(conn, transport.MessageHello); err != nil {
//	    return err
//	}
//	port, err := transport.ReadPortFrame(conn, cipher)
//
// # Audio channel
//
// [DialAudio] binds a UDP socket on the chosen local port and connects it to
// the peer's announced port. The returned [AudioConn] is the small surface the
// call loops need, which lets tests substitute fault-injecting connections.
//
// # Port ranges
//
// Local ports for audio, screenshare and file transfers are drawn uniformly
// from a configured [PortRange] such as "20000-21000".
package transport

package transport

import (
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AudioReadTimeout is the read deadline a call applies to each datagram.
const AudioReadTimeout = 3 * time.Second

// AudioConn is a UDP socket connected to one peer.
type AudioConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// DialAudio binds a UDP socket on 0.0.0.0:localPort and connects it to
// host:remotePort so that only the peer's datagrams are received.
func DialAudio(localPort uint16, host string, remotePort uint16) (AudioConn, error) {
	remote, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(int(remotePort))))
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", &net.UDPAddr{Port: int(localPort)}, remote)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "DialAudio",
			"local_port":  localPort,
			"remote_addr": remote.String(),
			"error":       err.Error(),
		}).Error("Failed to bind audio socket")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DialAudio",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": remote.String(),
	}).Debug("Audio socket connected")

	return conn, nil
}

// HostOf returns the host part of addr, or addr itself when it has no port.
func HostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

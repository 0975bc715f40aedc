// Package link performs the control-channel operations initiated towards one
// contact: call hello and resume, goodbyes, and the screenshare and file
// transfer handshakes.
//
// Each operation opens a short-lived TCP connection to the contact's control
// port, writes the message-type byte and, for handshakes, exchanges framed port
// announcements keyed by the contact's shared secret. Failures are classified
// as [ErrPeerUnreachable] when the peer cannot be reached at all and
// [ErrHandshakeTimeout] when it stops answering within the deadline.
package link

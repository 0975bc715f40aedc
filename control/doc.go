// Package control serves the TCP control port that peers contact to start,
// resume and end calls, offer screenshares and announce file transfers.
//
// Every inbound connection carries one exchange. The initiator writes a
// message-type byte; the server identifies the contact by the connection's
// source address and ignores unknown hosts without answering. Handshakes
// continue with framed port announcements and blobs sealed under the
// contact's shared secret:
//
//	hello         server → port, initiator → port, both bind UDP
//	goodbye       no reply; the call ends
//	screenshare   server → port, initiator → session description, EOF
//	screenshare   goodbye: no reply; playback stops
//	file          server → port, initiator → transfer descriptor, EOF
//
// A rejected call is signalled by closing the connection without a reply.
package control

// Package screenshare negotiates screen sharing during a call.
//
// The sharing side performs a handshake over the control channel: the viewer
// answers with a port, and the sharer replies with a session description that
// tells the viewer's media pipeline where to listen and how to decrypt.
// Descriptions are SDP documents built and parsed with pion/sdp:
//
//	desc := screenshare.NewDescription(peerHost, port, secret, salt)
//	payload, err := desc.Marshal()
//
// The resulting SDP announces H264/90000 over RTP/AVP and carries an SRTP key
// (AES_CM_128_HMAC_SHA1_80) formed by concatenating the shared secret and a
// fresh 14-byte salt.
//
// Capture and playback are performed by an external media pipeline behind the
// [Pipeline] interface. [Session] tracks whether sharing is active and stops
// the pipeline when either side says goodbye.
package screenshare

package screenshare

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/pion/sdp/v3"
)

// ErrMalformedHandshake indicates a session description that cannot be used.
var ErrMalformedHandshake = errors.New("malformed screenshare handshake")

const (
	// SaltSize is the SRTP master salt length.
	SaltSize = 14

	// CryptoSuite is the SRTP suite announced in the description.
	CryptoSuite = "AES_CM_128_HMAC_SHA1_80"

	payloadType = 96
	clockRate   = 90000
	sessionName = "Audio Chat Screen Share"
	bandwidthKb = 8000
)

// Description is what a viewer needs to receive a share.
type Description struct {
	// Host is the viewer's address, where the stream is sent.
	Host string
	// Port is the viewer's receive port.
	Port uint16
	// Key is the SRTP master key followed by the master salt.
	Key []byte
}

// NewSalt returns a fresh SRTP master salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// NewDescription describes a share sent to host:port keyed by secret and salt.
func NewDescription(host string, port uint16, secret, salt []byte) Description {
	key := make([]byte, 0, len(secret)+len(salt))
	key = append(key, secret...)
	key = append(key, salt...)
	return Description{Host: host, Port: port, Key: key}
}

func addressType(host string) string {
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return "IP6"
	}
	return "IP4"
}

// SDP builds the session description.
func (d Description) SDP() *sdp.SessionDescription {
	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "video",
			Port:    sdp.RangedPort{Value: int(d.Port)},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{fmt.Sprint(payloadType)},
		},
		Bandwidth: []sdp.Bandwidth{{Type: "AS", Bandwidth: bandwidthKb}},
	}
	media = media.
		WithValueAttribute("rtpmap", fmt.Sprintf("%d H264/%d", payloadType, clockRate)).
		WithValueAttribute("fmtp", fmt.Sprintf("%d packetization-mode=1", payloadType)).
		WithValueAttribute("crypto", "1 "+CryptoSuite+" inline:"+base64.StdEncoding.EncodeToString(d.Key))

	return &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: sdp.SessionName(sessionName),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addressType(d.Host),
			Address:     &sdp.Address{Address: d.Host},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{}}},
		MediaDescriptions: []*sdp.MediaDescription{media},
	}
}

// Marshal renders the description as SDP text.
func (d Description) Marshal() ([]byte, error) {
	return d.SDP().Marshal()
}

// ParseDescription validates SDP text received from the sharer.
func ParseDescription(data []byte) (Description, error) {
	var session sdp.SessionDescription
	if err := session.Unmarshal(data); err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}

	var video *sdp.MediaDescription
	for _, m := range session.MediaDescriptions {
		if m.MediaName.Media == "video" {
			video = m
			break
		}
	}
	if video == nil {
		return Description{}, fmt.Errorf("%w: no video media section", ErrMalformedHandshake)
	}
	if video.MediaName.Port.Value <= 0 || video.MediaName.Port.Value > 65535 {
		return Description{}, fmt.Errorf("%w: invalid port %d", ErrMalformedHandshake, video.MediaName.Port.Value)
	}

	conn := video.ConnectionInformation
	if conn == nil {
		conn = session.ConnectionInformation
	}
	if conn == nil || conn.Address == nil || conn.Address.Address == "" {
		return Description{}, fmt.Errorf("%w: missing connection address", ErrMalformedHandshake)
	}

	value, ok := video.Attribute("crypto")
	if !ok {
		return Description{}, fmt.Errorf("%w: missing crypto attribute", ErrMalformedHandshake)
	}
	key, err := parseCrypto(value)
	if err != nil {
		return Description{}, err
	}

	return Description{
		Host: conn.Address.Address,
		Port: uint16(video.MediaName.Port.Value),
		Key:  key,
	}, nil
}

// parseCrypto reads "1 AES_CM_128_HMAC_SHA1_80 inline:<base64>".
func parseCrypto(value string) ([]byte, error) {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: crypto attribute %q", ErrMalformedHandshake, value)
	}
	if fields[1] != CryptoSuite {
		return nil, fmt.Errorf("%w: unsupported suite %s", ErrMalformedHandshake, fields[1])
	}

	inline, found := strings.CutPrefix(fields[2], "inline:")
	if !found {
		return nil, fmt.Errorf("%w: crypto key is not inline", ErrMalformedHandshake)
	}
	// Lifetime and MKI parameters may follow the key.
	inline, _, _ = strings.Cut(inline, "|")

	key, err := base64.StdEncoding.DecodeString(inline)
	if err != nil {
		return nil, fmt.Errorf("%w: crypto key: %v", ErrMalformedHandshake, err)
	}
	return key, nil
}

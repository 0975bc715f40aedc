package screenshare

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef")

func TestDescriptionRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)

	desc := NewDescription("192.0.2.10", 20500, testSecret, salt)
	require.Len(t, desc.Key, 30)

	payload, err := desc.Marshal()
	require.NoError(t, err)

	text := string(payload)
	assert.Contains(t, text, "m=video 20500 RTP/AVP 96")
	assert.Contains(t, text, "a=rtpmap:96 H264/90000")
	assert.Contains(t, text, "c=IN IP4 192.0.2.10")
	assert.Contains(t, text, "a=crypto:1 AES_CM_128_HMAC_SHA1_80 inline:"+base64.StdEncoding.EncodeToString(desc.Key))

	got, err := ParseDescription(payload)
	require.NoError(t, err)
	assert.Equal(t, desc.Host, got.Host)
	assert.Equal(t, desc.Port, got.Port)
	assert.True(t, bytes.Equal(desc.Key, got.Key))
}

func TestDescriptionIPv6(t *testing.T) {
	desc := NewDescription("2001:db8::5", 20000, testSecret, make([]byte, SaltSize))
	payload, err := desc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "c=IN IP6 2001:db8::5")

	got, err := ParseDescription(payload)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5", got.Host)
}

func TestParseDescriptionRejects(t *testing.T) {
	valid, err := NewDescription("192.0.2.10", 20500, testSecret, make([]byte, SaltSize)).Marshal()
	require.NoError(t, err)

	tests := map[string][]byte{
		"garbage":   []byte("not sdp at all"),
		"no crypto": []byte(removeLine(string(valid), "a=crypto")),
		"bad suite": []byte(strings.Replace(string(valid), CryptoSuite, "AES_256_CM_HMAC_SHA1_32", 1)),
		"no video":  []byte(strings.Replace(string(valid), "m=video", "m=audio", 1)),
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDescription(payload)
			assert.ErrorIs(t, err, ErrMalformedHandshake)
		})
	}
}

func removeLine(sdpText, prefix string) string {
	var kept []string
	for _, line := range strings.Split(sdpText, "\r\n") {
		if !strings.HasPrefix(line, prefix) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\r\n")
}

func TestParseCryptoParameters(t *testing.T) {
	key := make([]byte, 30)
	key[0] = 7
	value := "1 " + CryptoSuite + " inline:" + base64.StdEncoding.EncodeToString(key) + "|2^20|1:4"

	got, err := parseCrypto(value)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = parseCrypto("1 " + CryptoSuite)
	assert.ErrorIs(t, err, ErrMalformedHandshake)
	_, err = parseCrypto("1 " + CryptoSuite + " key:abc")
	assert.ErrorIs(t, err, ErrMalformedHandshake)
}

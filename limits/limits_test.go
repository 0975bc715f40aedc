package limits

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameConstants(t *testing.T) {
	assert.Equal(t, 960, FrameSize)
	assert.Equal(t, 33, FrameOverhead)
	assert.Equal(t, 35, PortFrameSize)
	assert.Equal(t, 24000, MaxLatencyBytes)
	assert.Equal(t, 1953, MaxDatagram)
	assert.GreaterOrEqual(t, MaxPlaintext, DefaultFileChunk)
}

func TestValidateAudioFrame(t *testing.T) {
	assert.NoError(t, ValidateAudioFrame(nil))
	assert.NoError(t, ValidateAudioFrame(make([]byte, FrameSize)))

	err := ValidateAudioFrame(make([]byte, FrameSize+1))
	assert.True(t, errors.Is(err, ErrMessageTooLarge))
}

func TestValidateMessageSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		max     int
		wantErr error
	}{
		{"empty", 0, 10, ErrMessageEmpty},
		{"at limit", 10, 10, nil},
		{"over limit", 11, 10, ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageSize(make([]byte, tt.size), tt.max)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateChunkSize(t *testing.T) {
	assert.ErrorIs(t, ValidateChunkSize(0), ErrMessageEmpty)
	assert.NoError(t, ValidateChunkSize(DefaultFileChunk))
	assert.ErrorIs(t, ValidateChunkSize(MaxFileChunk+1), ErrMessageTooLarge)
}

func TestValidatePlaintextAndHandshake(t *testing.T) {
	assert.NoError(t, ValidatePlaintext(make([]byte, 1024)))
	assert.ErrorIs(t, ValidateHandshakePayload(nil), ErrMessageEmpty)
	assert.ErrorIs(t, ValidateHandshakePayload(make([]byte, MaxHandshakePayload+1)), ErrMessageTooLarge)
}

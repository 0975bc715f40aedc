package audio

import (
	"testing"

	"github.com/chanderlud/audio-chat/limits"
	"github.com/stretchr/testify/assert"
)

func constantFrame(v int16) []byte {
	samples := make([]int16, limits.FrameSamples)
	for i := range samples {
		samples[i] = v
	}
	return pcm(samples...)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS(Silence()))
	assert.InDelta(t, 0.5, RMS(constantFrame(16384)), 1e-6)
	assert.InDelta(t, 0.5, RMS(constantFrame(-16384)), 1e-6)
}

func TestSilenceDetectorStreak(t *testing.T) {
	d := NewSilenceDetector(-50)
	quiet := Silence()

	for i := 0; i <= limits.SilenceStreak; i++ {
		assert.False(t, d.Silent(quiet), "frame %d should still be sent", i)
	}
	assert.True(t, d.Silent(quiet))
	assert.True(t, d.Silent(quiet))

	loud := constantFrame(8000)
	assert.False(t, d.Silent(loud))
	assert.False(t, d.Silent(quiet))
}

func TestSilenceDetectorThreshold(t *testing.T) {
	// -20dBFS is an amplitude of 0.1, about 3277 in int16.
	d := NewSilenceDetector(-20)
	frame := constantFrame(2000)

	for i := 0; i <= limits.SilenceStreak; i++ {
		d.Silent(frame)
	}
	assert.True(t, d.Silent(frame))

	d.SetThreshold(-60)
	assert.False(t, d.Silent(frame))
}

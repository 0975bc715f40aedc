package audio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chanderlud/audio-chat/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseFrame(r *rand.Rand, amplitude float64) []byte {
	samples := make([]int16, limits.FrameSamples)
	for i := range samples {
		samples[i] = int16((r.Float64()*2 - 1) * amplitude)
	}
	return pcm(samples...)
}

func TestSuppressorValidation(t *testing.T) {
	_, err := NewSpectralSuppressor(-0.1)
	assert.Error(t, err)
	_, err = NewSpectralSuppressor(1.5)
	assert.Error(t, err)
}

func TestSuppressorPreservesLength(t *testing.T) {
	s, err := NewSpectralSuppressor(0.5)
	require.NoError(t, err)

	out := s.Process(Silence())
	assert.Len(t, out, limits.FrameSize)
	assert.Empty(t, s.Process(nil))
}

func TestSuppressorZeroLevelIsTransparent(t *testing.T) {
	s, err := NewSpectralSuppressor(0)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < learningFrames+3; i++ {
		in := noiseFrame(r, 4000)
		out := s.Process(in)
		a, b := samplesOf(in), samplesOf(out)
		for j := range a {
			assert.InDelta(t, a[j], b[j], 2)
		}
	}
}

func TestSuppressorReducesStationaryNoise(t *testing.T) {
	s, err := NewSpectralSuppressor(1)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < learningFrames; i++ {
		s.Process(noiseFrame(r, 3000))
	}
	require.True(t, s.Learned())

	var before, after float64
	for i := 0; i < 20; i++ {
		in := noiseFrame(r, 3000)
		before += RMS(in)
		after += RMS(s.Process(in))
	}
	assert.Less(t, after, before*0.8)
}

func TestFFTRoundTrip(t *testing.T) {
	data := make([]complex128, fftSize)
	for i := range data {
		data[i] = complex(math.Sin(float64(i)), 0)
	}
	orig := append([]complex128(nil), data...)

	fft(data)
	ifft(data)
	for i := range data {
		assert.InDelta(t, real(orig[i]), real(data[i]), 1e-9)
	}
}

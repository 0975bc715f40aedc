package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// fftSize is the transform length; a 480-sample frame is zero padded to it.
	fftSize = 512

	// learningFrames is how many initial frames train the noise floor.
	learningFrames = 10

	overSubtraction = 2.0
	spectralFloor   = 0.1
)

// SpectralSuppressor removes stationary background noise with spectral
// subtraction. The noise floor is learned from the first frames of a stream,
// which are expected to contain background only.
type SpectralSuppressor struct {
	mu         sync.Mutex
	level      float64
	noiseFloor []float64
	spectrum   []complex128
	frameCount int
}

// NewSpectralSuppressor creates a suppressor with a strength between 0 and 1.
func NewSpectralSuppressor(level float64) (*SpectralSuppressor, error) {
	if level < 0 || level > 1 || math.IsNaN(level) {
		logrus.WithFields(logrus.Fields{
			"function": "NewSpectralSuppressor",
			"level":    level,
		}).Error("Suppression level validation failed")
		return nil, fmt.Errorf("suppression level must be between 0.0 and 1.0: %f", level)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSpectralSuppressor",
		"level":    level,
		"fft_size": fftSize,
	}).Info("Noise suppressor created")

	return &SpectralSuppressor{
		level:      level,
		noiseFloor: make([]float64, fftSize/2+1),
		spectrum:   make([]complex128, fftSize),
	}, nil
}

// Learned reports whether the noise floor estimate is complete.
func (s *SpectralSuppressor) Learned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount >= learningFrames
}

// Process returns a suppressed copy of a PCM frame of the same length. Frames
// longer than the transform length are passed through unchanged.
func (s *SpectralSuppressor) Process(frame []byte) []byte {
	samples := len(frame) / 2
	if samples == 0 || samples > fftSize {
		out := make([]byte, len(frame))
		copy(out, frame)
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.spectrum {
		if i < samples {
			v := float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768.0
			s.spectrum[i] = complex(v, 0)
		} else {
			s.spectrum[i] = 0
		}
	}

	fft(s.spectrum)
	magnitude := make([]float64, fftSize/2+1)
	for i := range magnitude {
		re, im := real(s.spectrum[i]), imag(s.spectrum[i])
		magnitude[i] = math.Sqrt(re*re + im*im)
	}

	if s.frameCount < learningFrames {
		s.learn(magnitude)
	} else {
		s.subtract(magnitude)
	}

	ifft(s.spectrum)

	out := make([]byte, len(frame))
	for i := 0; i < samples; i++ {
		v := real(s.spectrum[i])
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767.0)))
	}
	return out
}

func (s *SpectralSuppressor) learn(magnitude []float64) {
	const alpha = 0.8
	for i := range s.noiseFloor {
		if s.frameCount == 0 {
			s.noiseFloor[i] = magnitude[i]
		} else {
			s.noiseFloor[i] = alpha*s.noiseFloor[i] + (1-alpha)*magnitude[i]
		}
	}
	s.frameCount++
	if s.frameCount == learningFrames {
		logrus.WithFields(logrus.Fields{
			"function": "SpectralSuppressor.learn",
		}).Debug("Noise floor estimation completed")
	}
}

func (s *SpectralSuppressor) subtract(magnitude []float64) {
	for i := range magnitude {
		if magnitude[i] == 0 {
			continue
		}
		subtracted := magnitude[i] - overSubtraction*s.level*s.noiseFloor[i]
		if floor := spectralFloor * magnitude[i]; subtracted < floor {
			subtracted = floor
		}
		ratio := complex(subtracted/magnitude[i], 0)
		s.spectrum[i] *= ratio
		if i > 0 && i < fftSize/2 {
			s.spectrum[fftSize-i] *= ratio
		}
	}
}

// fft is an in-place radix-2 Cooley-Tukey transform; len(data) must be a power of 2.
func fft(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	for i, j := 0, 0; i < n; i++ {
		if j > i {
			data[i], data[j] = data[j], data[i]
		}
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := 2 * math.Pi / float64(size)
		for i := 0; i < n; i += size {
			for j := 0; j < half; j++ {
				u := data[i+j]
				v := data[i+j+half] * complex(math.Cos(float64(j)*step), -math.Sin(float64(j)*step))
				data[i+j] = u + v
				data[i+j+half] = u - v
			}
		}
	}
}

// ifft inverts fft using the conjugate trick.
func ifft(data []complex128) {
	n := len(data)
	for i := range data {
		data[i] = complex(real(data[i]), -imag(data[i]))
	}
	fft(data)
	for i := range data {
		data[i] = complex(real(data[i])/float64(n), -imag(data[i])/float64(n))
	}
}

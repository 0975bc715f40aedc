package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/chanderlud/audio-chat/limits"
)

// RMS returns the root mean square of a 16-bit PCM frame normalized to [0, 1].
func RMS(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(frame); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// SilenceDetector tracks runs of quiet frames. Once more than
// limits.SilenceStreak consecutive frames fall at or below the threshold, the
// capture loop sends silence markers instead of audio.
type SilenceDetector struct {
	mu        sync.Mutex
	threshold float64
	streak    int
}

// NewSilenceDetector creates a detector with a threshold in dBFS.
func NewSilenceDetector(thresholdDB float64) *SilenceDetector {
	return &SilenceDetector{threshold: DBToAmplitude(thresholdDB)}
}

// SetThreshold updates the threshold in dBFS.
func (d *SilenceDetector) SetThreshold(thresholdDB float64) {
	d.mu.Lock()
	d.threshold = DBToAmplitude(thresholdDB)
	d.mu.Unlock()
}

// Silent observes a frame and reports whether a silence marker should replace it.
func (d *SilenceDetector) Silent(frame []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if RMS(frame) > d.threshold {
		d.streak = 0
		return false
	}
	if d.streak > limits.SilenceStreak {
		return true
	}
	d.streak++
	return false
}

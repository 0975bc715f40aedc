package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxGainDB bounds gain settings; +12dB is four times the amplitude.
const MaxGainDB = 12.0

// DBToAmplitude converts decibels to a linear amplitude ratio.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// AmplitudeToDB converts a linear amplitude ratio to decibels.
func AmplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}

// Gain scales PCM frames by a decibel setting that may change while a call runs.
type Gain struct {
	mu     sync.RWMutex
	db     float64
	linear float64
}

// NewGain creates a Gain of db decibels.
func NewGain(db float64) (*Gain, error) {
	g := &Gain{}
	if err := g.SetDB(db); err != nil {
		return nil, err
	}
	return g, nil
}

// SetDB updates the gain.
func (g *Gain) SetDB(db float64) error {
	if math.IsNaN(db) || db > MaxGainDB {
		logrus.WithFields(logrus.Fields{
			"function": "Gain.SetDB",
			"gain_db":  db,
			"max_db":   MaxGainDB,
		}).Error("Gain validation failed")
		return fmt.Errorf("gain too high (max %.1fdB): %f", MaxGainDB, db)
	}

	g.mu.Lock()
	g.db = db
	g.linear = DBToAmplitude(db)
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Gain.SetDB",
		"gain_db":  db,
	}).Debug("Gain updated")

	return nil
}

// DB returns the current gain in decibels.
func (g *Gain) DB() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db
}

// Apply returns a copy of frame scaled by the gain. Samples that would overflow
// are clipped to the int16 range.
func (g *Gain) Apply(frame []byte) []byte {
	g.mu.RLock()
	factor := g.linear
	g.mu.RUnlock()

	out := make([]byte, len(frame))
	if factor == 1 {
		copy(out, frame)
		return out
	}

	clipped := 0
	for i := 0; i+1 < len(frame); i += 2 {
		scaled := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) * factor
		switch {
		case scaled > math.MaxInt16:
			scaled = math.MaxInt16
			clipped++
		case scaled < math.MinInt16:
			scaled = math.MinInt16
			clipped++
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(scaled)))
	}

	if clipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "Gain.Apply",
			"clipped_count": clipped,
			"total_samples": len(frame) / 2,
		}).Debug("Audio clipping detected during gain processing")
	}

	return out
}

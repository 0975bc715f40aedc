package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/chanderlud/audio-chat/limits"
	"github.com/sirupsen/logrus"
)

// ErrDeviceUnavailable indicates no usable audio device could be opened.
var ErrDeviceUnavailable = errors.New("no usable audio device")

// ErrDeviceClosed indicates an operation on a closed device.
var ErrDeviceClosed = errors.New("audio device closed")

// Input produces captured PCM frames.
type Input interface {
	// ReadFrame blocks until size bytes of PCM are captured.
	ReadFrame(size int) ([]byte, error)
}

// Output consumes PCM frames for playback.
type Output interface {
	WriteFrame(frame []byte) error
}

// Device is a duplex audio stream.
type Device interface {
	Input
	Output
	Close() error
}

// Opener opens the configured duplex device for a call or audio test.
type Opener interface {
	Open() (Device, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func() (Device, error)

// Open calls f.
func (f OpenerFunc) Open() (Device, error) { return f() }

// NoiseSuppressor transforms a captured frame before it is sent.
type NoiseSuppressor interface {
	Process(frame []byte) []byte
}

// Silence returns one frame of digital silence.
func Silence() []byte {
	return make([]byte, limits.FrameSize)
}

// NullDevice captures silence at the real frame cadence and discards playback.
type NullDevice struct {
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewNullDevice creates a NullDevice pacing reads at limits.FrameDuration.
func NewNullDevice() *NullDevice {
	logrus.WithFields(logrus.Fields{
		"function": "NewNullDevice",
		"cadence":  limits.FrameDuration,
	}).Info("Opening null audio device")

	return &NullDevice{
		ticker: time.NewTicker(limits.FrameDuration),
		done:   make(chan struct{}),
	}
}

// ReadFrame waits for the next frame period and returns size bytes of silence.
func (d *NullDevice) ReadFrame(size int) ([]byte, error) {
	select {
	case <-d.done:
		return nil, ErrDeviceClosed
	case <-d.ticker.C:
		return make([]byte, size), nil
	}
}

// WriteFrame discards the frame.
func (d *NullDevice) WriteFrame(frame []byte) error {
	select {
	case <-d.done:
		return ErrDeviceClosed
	default:
		return nil
	}
}

// Close stops the device and unblocks pending reads.
func (d *NullDevice) Close() error {
	d.closeOnce.Do(func() {
		d.ticker.Stop()
		close(d.done)
	})
	return nil
}

// NullOpener opens a NullDevice.
var NullOpener = OpenerFunc(func() (Device, error) { return NewNullDevice(), nil })

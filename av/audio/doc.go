// Package audio provides the audio-side collaborators of a call: abstract device
// interfaces, gain control, silence detection and an optional noise suppressor.
//
// # Devices
//
// The call core never talks to sound hardware. It reads and writes fixed-size
// PCM frames through [Input] and [Output], obtained from an [Opener]:
//
//	dev, err := opener.Open()
//	if errors.Is(err, audio.ErrDeviceUnavailable) {
//	    // abort call setup, stay Ready
//	}
//	frame, err := dev.ReadFrame(limits.FrameSize)
//
// [NullDevice] is a paced stand-in for headless runs: it produces silence at the
// real frame cadence and discards playback.
//
// # Processing
//
// Frames are 16-bit little-endian mono PCM at 48kHz.
//
//   - [Gain] scales frames by a decibel setting with clipping protection.
//   - [SilenceDetector] decides when a run of quiet frames should be replaced by
//     silence markers.
//   - [SpectralSuppressor] implements [NoiseSuppressor] with FFT spectral
//     subtraction.
package audio

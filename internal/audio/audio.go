package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Buffer is decoded PCM audio: interleaved stereo float32 at SampleRate.
// A Buffer is never modified after it is built.
type Buffer struct {
	samples []float32
}

// NewBuffer wraps interleaved stereo samples at SampleRate. A trailing odd
// sample is dropped.
func NewBuffer(samples []float32) *Buffer {
	if len(samples)%Channels != 0 {
		samples = samples[:len(samples)-len(samples)%Channels]
	}
	return &Buffer{samples: samples}
}

// Frames returns the number of sample frames (one sample per channel).
func (b *Buffer) Frames() int {
	if b == nil {
		return 0
	}
	return len(b.samples) / Channels
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / SampleRate
}

// Frame returns the left and right sample at frame index i, or silence when
// i is out of range.
func (b *Buffer) Frame(i int) (left, right float32) {
	if i < 0 || i >= b.Frames() {
		return 0, 0
	}
	return b.samples[i*Channels], b.samples[i*Channels+1]
}

// Silence returns a buffer of the given length in seconds.
func Silence(seconds float64) *Buffer {
	n := int(seconds * SampleRate)
	if n < 0 {
		n = 0
	}
	return &Buffer{samples: make([]float32, n*Channels)}
}

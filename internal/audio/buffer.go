// Package audio provides the in-memory sample buffer shared by the analysis,
// cleaning and lip-sync packages, plus WAV file I/O using go-audio.
package audio

import "slices"

// Buffer holds decoded audio as float64 samples in the range [-1, 1],
// stored channel-major: Channels[c][i] is sample i of channel c.
// All channels have the same length.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewMono wraps a single channel of samples.
func NewMono(samples []float64, sampleRate int) *Buffer {
	return &Buffer{Channels: [][]float64{samples}, SampleRate: sampleRate}
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// Mono returns the per-sample mean across channels. For a single-channel
// buffer the channel itself is returned without copying.
func (b *Buffer) Mono() []float64 {
	switch b.NumChannels() {
	case 0:
		return nil
	case 1:
		return b.Channels[0]
	}
	n := b.Len()
	out := make([]float64, n)
	for _, ch := range b.Channels {
		for i, v := range ch {
			out[i] += v
		}
	}
	scale := 1 / float64(len(b.Channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	out := &Buffer{SampleRate: b.SampleRate, Channels: make([][]float64, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = slices.Clone(ch)
	}
	return out
}

// Duplicate builds a buffer of numChannels identical copies of mono.
func Duplicate(mono []float64, numChannels, sampleRate int) *Buffer {
	numChannels = max(numChannels, 1)
	out := &Buffer{SampleRate: sampleRate, Channels: make([][]float64, numChannels)}
	out.Channels[0] = mono
	for c := 1; c < numChannels; c++ {
		out.Channels[c] = slices.Clone(mono)
	}
	return out
}

// Slice returns the samples in [start, end) of every channel, clamped to the
// buffer bounds. The returned buffer shares memory with b.
func (b *Buffer) Slice(start, end int) *Buffer {
	n := b.Len()
	start = min(max(start, 0), n)
	end = min(max(end, start), n)
	out := &Buffer{SampleRate: b.SampleRate, Channels: make([][]float64, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = ch[start:end]
	}
	return out
}

// Int16 full-scale divisor.
const int16Scale = 32768.0

// Int32 full-scale divisor.
const int32Scale = 2147483648.0

// FromInt16 converts signed 16-bit PCM to float samples.
func FromInt16(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / int16Scale
	}
	return out
}

// FromInt32 converts signed 32-bit PCM to float samples.
func FromInt32(samples []int32) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / int32Scale
	}
	return out
}

// ToInt16 converts float samples to 16-bit PCM, scaling by 32767 and
// saturating at full scale.
func ToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		s = min(max(s, -1), 1)
		out[i] = int16(s * 32767)
	}
	return out
}

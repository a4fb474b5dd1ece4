package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a readable RIFF/WAVE stream.
var ErrInvalidWAV = errors.New("invalid WAV file")

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
}

// ReadWAV opens and fully decodes a PCM WAV file.
func ReadWAV(filename string) (*Buffer, *Metadata, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	buf, meta, err := DecodeWAV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	return buf, meta, nil
}

// DecodeWAV decodes a PCM WAV stream into a float Buffer.
// Integer samples are scaled by 2^(bits-1) so full scale maps to ±1.
func DecodeWAV(r io.ReadSeeker) (*Buffer, *Metadata, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, nil, ErrInvalidWAV
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read PCM data: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || pcm.Format.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("%w: missing format chunk", ErrInvalidWAV)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}

	buf := deinterleave(pcm, bitDepth)
	meta := &Metadata{
		Duration:   buf.Duration(),
		SampleRate: buf.SampleRate,
		Channels:   buf.NumChannels(),
		BitDepth:   bitDepth,
	}
	return buf, meta, nil
}

// deinterleave splits interleaved integer PCM into normalised channels.
func deinterleave(pcm *goaudio.IntBuffer, bitDepth int) *Buffer {
	numCh := pcm.Format.NumChannels
	frames := len(pcm.Data) / numCh

	scale := 1.0
	offset := 0
	switch {
	case bitDepth == 8:
		// 8-bit WAV is unsigned with a 128 midpoint
		scale = 128
		offset = 128
	case bitDepth > 1:
		scale = float64(int64(1) << (bitDepth - 1))
	}

	buf := &Buffer{SampleRate: pcm.Format.SampleRate, Channels: make([][]float64, numCh)}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			buf.Channels[c][i] = float64(pcm.Data[i*numCh+c]-offset) / scale
		}
	}
	return buf
}

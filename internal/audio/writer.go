package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// pcmFormat is the WAV audio format tag for integer PCM.
const pcmFormat = 1

// WriteWAV encodes buf as 16-bit PCM WAV at path.
func WriteWAV(path string, buf *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := EncodeWAV(f, buf); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// EncodeWAV writes buf as interleaved 16-bit PCM.
// Samples outside [-1, 1] are saturated.
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	numCh := max(buf.NumChannels(), 1)
	frames := buf.Len()

	data := make([]int, frames*numCh)
	for c, ch := range buf.Channels {
		for i, v := range ToInt16(ch) {
			data[i*numCh+c] = int(v)
		}
	}

	enc := wav.NewEncoder(w, buf.SampleRate, 16, numCh, pcmFormat)
	pcm := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: buf.SampleRate, NumChannels: numCh},
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV header: %w", err)
	}
	return nil
}

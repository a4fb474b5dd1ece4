package synth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/linuxmatters/mouthpiece/internal/logger"
)

// DefaultVoice is a Japanese neural voice.
const DefaultVoice = "ja-JP-NanamiNeural"

// streamFunc opens a synthesis stream of tagged messages.
type streamFunc func(text, voice string) (<-chan map[string]any, error)

func edgeStream(text, voice string) (<-chan map[string]any, error) {
	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("create communicate: %w", err)
	}
	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return ch, nil
}

// EdgeSynthesizer speaks through Microsoft Edge's online TTS service. The
// service returns MP3, which is decoded and mixed down to mono.
type EdgeSynthesizer struct {
	voice  string
	stream streamFunc
}

// NewEdgeSynthesizer returns a synthesizer using voice by default.
func NewEdgeSynthesizer(voice string) *EdgeSynthesizer {
	if voice == "" {
		voice = DefaultVoice
	}
	return &EdgeSynthesizer{voice: voice, stream: edgeStream}
}

// Synthesize implements Synthesizer. p.Voice overrides the default voice.
func (e *EdgeSynthesizer) Synthesize(ctx context.Context, text string, p Params) (int, []float64, error) {
	if e == nil || e.stream == nil {
		return 0, nil, ErrNotLoaded
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil, ErrEmptyText
	}
	voice := e.voice
	if p.Voice != "" {
		voice = p.Voice
	}
	fail := func(err error) (int, []float64, error) {
		return 0, nil, &SynthesisError{Backend: "edge-tts", Text: preview(text), Err: err}
	}

	logger.Debugf("edge-tts: %d characters, voice %s", len([]rune(text)), voice)
	ch, err := e.stream(text, voice)
	if err != nil {
		return fail(err)
	}

	var mp3Buf bytes.Buffer
	for msg := range ch {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		if t, ok := msg["type"].(string); ok && t == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}
	if mp3Buf.Len() == 0 {
		return fail(errors.New("no audio received"))
	}

	sampleRate, samples, err := decodeMP3(mp3Buf.Bytes())
	if err != nil {
		return fail(err)
	}
	logger.Debugf("edge-tts: %d samples at %d Hz", len(samples), sampleRate)
	return sampleRate, samples, nil
}

// decodeMP3 decodes an MP3 stream to mono samples.
func decodeMP3(data []byte) (int, []float64, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return 0, nil, fmt.Errorf("read pcm: %w", err)
	}
	return dec.SampleRate(), stereoToMono(pcm), nil
}

// stereoToMono averages interleaved signed 16-bit little-endian stereo
// frames. A trailing partial frame is dropped.
func stereoToMono(pcm []byte) []float64 {
	const frameBytes = 4
	n := len(pcm) / frameBytes
	out := make([]float64, n)
	for i := range out {
		off := i * frameBytes
		left := int16(binary.LittleEndian.Uint16(pcm[off:]))
		right := int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		out[i] = (float64(left) + float64(right)) / 2 / 32768
	}
	return out
}

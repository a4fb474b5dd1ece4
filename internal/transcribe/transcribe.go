// Package transcribe provides timed transcripts of speech files, either
// from a whisper.cpp server or from a precomputed sidecar file.
package transcribe

import (
	"context"
	"strings"
)

// Segment is one timed piece of transcript, in seconds.
type Segment struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

// Transcription is the full result for one file.
type Transcription struct {
	Text     string    `json:"text" yaml:"text"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

// Transcriber produces a timed transcript for a WAV file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (Transcription, error)
}

// joinText concatenates segment texts when a source gives no overall text.
func joinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Package synth wraps text-to-speech backends behind one interface and
// provides chunked, resumable synthesis of long scripts.
package synth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("synth: empty text")
	// ErrNotLoaded is returned when the backend is not ready.
	ErrNotLoaded = errors.New("synth: backend not loaded")
)

// Params selects how text is spoken.
type Params struct {
	Voice string `json:"voice,omitempty" yaml:"voice" toml:"voice"`
}

// Synthesizer turns text into mono float samples.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, p Params) (sampleRate int, samples []float64, err error)
}

// SynthesisError wraps a backend failure.
type SynthesisError struct {
	Backend string
	Text    string
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synth: %s failed for %q: %v", e.Backend, e.Text, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// preview shortens text for errors and logs.
func preview(text string) string {
	r := []rune(text)
	if len(r) <= 30 {
		return text
	}
	return string(r[:30]) + "..."
}

// Package phoneme turns text into timed phoneme events with a vowel class
// and mouth intensity per event.
//
// Symbols come from a Phonemizer when one is configured. Otherwise a kana
// table approximates one event per character, and as a last resort a fixed
// a-i-u-e-o placeholder keeps downstream consumers supplied with something
// to animate.
package phoneme

import (
	"strings"
	"unicode/utf8"

	"github.com/linuxmatters/mouthpiece/internal/logger"
)

// Source records which path produced a set of events.
type Source string

const (
	SourcePhonemizer  Source = "phonemizer"
	SourceKana        Source = "kana"
	SourcePlaceholder Source = "placeholder"
)

// Event is one timed phoneme.
type Event struct {
	Phoneme      string  `json:"phoneme"`
	Start        float64 `json:"start_time"`
	Duration     float64 `json:"duration"`
	Vowel        string  `json:"vowel"`
	Intensity    float64 `json:"intensity"`
	MoraPosition int     `json:"mora_position"`
	WordPosition int     `json:"word_position"`
	IsEnding     bool    `json:"is_ending"`
}

// End returns the time the event finishes.
func (e Event) End() float64 { return e.Start + e.Duration }

// Phonemizer converts text to a sequence of phoneme symbols.
type Phonemizer interface {
	Phonemes(text string) ([]string, error)
}

// EndingProtection keeps the last sounds of an utterance from being clipped
// by lengthening and strengthening them.
type EndingProtection struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	MinDuration    float64 `json:"min_duration" yaml:"min_duration" toml:"min_duration"`
	IntensityBoost float64 `json:"intensity_boost" yaml:"intensity_boost" toml:"intensity_boost"`
	// TailWindow is how many non-pause phonemes before the last one also
	// count as endings.
	TailWindow int `json:"tail_window" yaml:"tail_window" toml:"tail_window"`
}

// DefaultEndingProtection returns the analyzer's default protection.
func DefaultEndingProtection() EndingProtection {
	return EndingProtection{
		Enabled:        true,
		MinDuration:    0.25,
		IntensityBoost: 1.2,
		TailWindow:     2,
	}
}

// Analyzer produces phoneme events from text.
type Analyzer struct {
	phonemizer Phonemizer
	protection EndingProtection
}

// NewAnalyzer creates an analyzer. A nil phonemizer selects the kana table.
func NewAnalyzer(p Phonemizer) *Analyzer {
	return &Analyzer{
		phonemizer: p,
		protection: DefaultEndingProtection(),
	}
}

// HasPhonemizer reports whether a phonemizer backend is configured.
func (a *Analyzer) HasPhonemizer() bool { return a.phonemizer != nil }

// EndingProtection returns the current protection settings.
func (a *Analyzer) EndingProtection() EndingProtection { return a.protection }

// SetEndingProtection updates the protection switch and its two tunables.
func (a *Analyzer) SetEndingProtection(enabled bool, minDuration, boost float64) {
	a.protection.Enabled = enabled
	a.protection.MinDuration = minDuration
	a.protection.IntensityBoost = boost
	logger.Debugf("ending protection: enabled=%t min=%.2fs boost=%.2fx", enabled, minDuration, boost)
}

// SetTailWindow sets how far from the end a phoneme still counts as an ending.
func (a *Analyzer) SetTailWindow(n int) {
	a.protection.TailWindow = max(0, n)
}

// Analyze converts text to phoneme events and reports which path produced
// them. It never returns an empty slice.
func (a *Analyzer) Analyze(text string) ([]Event, Source) {
	textLen := utf8.RuneCountInString(text)

	if a.phonemizer != nil {
		symbols, err := a.phonemizer.Phonemes(text)
		if err != nil {
			logger.Warnf("phonemizer failed, using kana table: %v", err)
		} else if symbols = NormalizeSymbols(symbols); len(symbols) > 0 {
			return a.protect(eventsFromSymbols(symbols, textLen)), SourcePhonemizer
		}
	}

	if events := kanaEvents(text); len(events) > 0 {
		return a.protect(events), SourceKana
	}
	return a.protect(placeholderEvents()), SourcePlaceholder
}

// eventsFromSymbols lays symbols end to end. Pauses start a new word and
// reset the mora counter.
func eventsFromSymbols(symbols []string, textLen int) []Event {
	events := make([]Event, 0, len(symbols))
	var t float64
	var mora, word int
	for _, p := range symbols {
		vowel := VowelFor(p)
		ev := Event{
			Phoneme:      p,
			Start:        t,
			Duration:     estimateDuration(p, textLen),
			Vowel:        vowel,
			Intensity:    phonemeIntensity(p, vowel),
			MoraPosition: mora,
			WordPosition: word,
		}
		events = append(events, ev)
		t += ev.Duration

		if p == "pau" || p == "sp" {
			word++
			mora = 0
		} else {
			mora++
		}
	}
	return events
}

// placeholderEvents is the last-resort a-i-u-e-o sequence.
func placeholderEvents() []Event {
	vowels := []string{VowelA, VowelI, VowelU, VowelE, VowelO}
	events := make([]Event, len(vowels))
	for j, v := range vowels {
		events[j] = Event{
			Phoneme:      v,
			Start:        float64(j) * 0.2,
			Duration:     0.2,
			Vowel:        v,
			Intensity:    0.5,
			MoraPosition: j,
		}
	}
	return events
}

// estimateDuration scales the base duration by text length: short texts
// are spoken a little slower, long ones a little faster.
func estimateDuration(p string, textLen int) float64 {
	base, ok := baseDurations[p]
	if !ok {
		base = defaultDuration
	}
	factor := 10 / float64(max(textLen, 1))
	return base * min(1.2, max(0.8, factor))
}

// VowelFor maps a phoneme symbol to its vowel class: a table lookup, then
// the final letter, else silence.
func VowelFor(p string) string {
	if v, ok := phonemeVowels[p]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(p, "a"):
		return VowelA
	case strings.HasSuffix(p, "i"):
		return VowelI
	case strings.HasSuffix(p, "u"):
		return VowelU
	case strings.HasSuffix(p, "e"):
		return VowelE
	case strings.HasSuffix(p, "o"):
		return VowelO
	}
	return VowelSilence
}

func phonemeIntensity(p, vowel string) float64 {
	base, ok := vowelIntensity[vowel]
	if !ok {
		base = defaultIntensity
	}
	switch {
	case isPause(p):
		return 0
	case p == "N":
		return 0.4
	case p == "Q":
		return 0.1
	case utf8.RuneCountInString(p) > 1:
		return base * 0.9
	}
	return base
}

// Package lipsync turns text and synthesized speech into a timeline of
// vowel frames that drive a Live2D-style mouth.
//
// The pipeline runs the text through a phonemizer, merges consonant and
// vowel symbols into syllables, maps each to a vowel class, stretches the
// sequence over the audio and carves out the silences found in it. When no
// phonemizer is available, or anything in the pipeline fails, a
// character-count fallback keeps the mouth moving for the right length of
// time.
package lipsync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/observe"
	"github.com/linuxmatters/mouthpiece/internal/phoneme"
	"github.com/linuxmatters/mouthpiece/internal/transcribe"
)

var (
	// ErrEmptyText is returned when there is no text to analyse.
	ErrEmptyText = errors.New("lipsync: empty text")
	// ErrDisabled is returned when the engine is switched off.
	ErrDisabled = errors.New("lipsync: disabled")
	// ErrNoFrames is returned when long-form analysis produced nothing.
	ErrNoFrames = errors.New("lipsync: no frames produced")
)

// Source records which path produced the frames.
type Source string

const (
	SourcePhonemizer Source = "phonemizer"
	SourceFallback   Source = "fallback"
)

// Frame is one vowel held for a span of time.
type Frame struct {
	Timestamp float64 `json:"timestamp"`
	Vowel     string  `json:"vowel"`
	Intensity float64 `json:"intensity"`
	Duration  float64 `json:"duration"`
	IsEnding  bool    `json:"is_ending"`
}

// End returns the time the frame finishes.
func (f Frame) End() float64 { return f.Timestamp + f.Duration }

// Data is a complete lip-sync timeline.
type Data struct {
	Text          string  `json:"text"`
	TotalDuration float64 `json:"total_duration"`
	Frames        []Frame `json:"vowel_frames"`
	SampleRate    int     `json:"sample_rate"`
	Source        Source  `json:"source"`
	// Degraded explains why a fallback was used. Empty when the full
	// pipeline ran.
	Degraded string `json:"degraded,omitempty"`
	// WholeClip is set by long-form analysis when segmentation was not
	// possible and the clip was analysed in one pass.
	WholeClip bool `json:"whole_clip,omitempty"`
}

// defaultSampleRate is reported for timelines built without audio.
const defaultSampleRate = 22050

// Fallback reasons, used as the metric attribute.
const (
	reasonNoPhonemizer = "no_phonemizer"
	reasonNoPhonemes   = "no_phonemes"
	reasonG2PError     = "g2p_error"
	reasonPanic        = "panic"
)

// Config holds the initial engine state.
type Config struct {
	Settings   Settings
	Protection EndingProtection
	Vowels     VowelMapping // nil selects DefaultVowelMapping
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Settings:   DefaultSettings(),
		Protection: DefaultEndingProtection(),
		Vowels:     DefaultVowelMapping(),
	}
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithTranscriber sets the transcriber used by AnalyzeLong.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(e *Engine) { e.transcriber = t }
}

// WithMetrics records to m instead of the global instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine produces lip-sync timelines. It is safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	settings   Settings
	protection EndingProtection
	vowels     VowelMapping
	onChange   func(Params)

	g2p         phoneme.Phonemizer
	transcriber transcribe.Transcriber
	metrics     *observe.Metrics
}

// New creates an engine. A nil phonemizer leaves only the fallback path.
func New(g2p phoneme.Phonemizer, cfg Config, opts ...Option) *Engine {
	vowels := DefaultVowelMapping()
	for v, shape := range cfg.Vowels {
		if _, ok := vowels[v]; ok {
			vowels[v] = sanitizeShape(shape)
		}
	}

	e := &Engine{
		settings:   sanitizeSettings(cfg.Settings),
		protection: sanitizeProtection(cfg.Protection),
		vowels:     vowels,
		g2p:        g2p,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Available reports whether the full phonemizer pipeline can run.
func (e *Engine) Available() bool { return e.g2p != nil }

// snapshot is the configuration one analysis runs with.
type snapshot struct {
	settings   Settings
	protection EndingProtection
	vowels     VowelMapping
}

func (e *Engine) snapshot() snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshot{
		settings:   e.settings,
		protection: e.protection,
		vowels:     maps.Clone(e.vowels),
	}
}

// Analyze builds a timeline for text. When buf holds audio the timeline is
// stretched to its length and its silences are carved out; otherwise the
// length is estimated from the text.
func (e *Engine) Analyze(text string, buf *audio.Buffer) (*Data, error) {
	return e.analyze(context.Background(), text, buf)
}

func (e *Engine) analyze(ctx context.Context, text string, buf *audio.Buffer) (data *Data, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	snap := e.snapshot()
	if !snap.settings.Enabled {
		return nil, ErrDisabled
	}

	start := time.Now()
	defer func() {
		e.metrics.LipSyncDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var samples []float64
	sampleRate := defaultSampleRate
	var actual *float64
	if buf.Len() > 0 && buf.SampleRate > 0 {
		samples = buf.Mono()
		sampleRate = buf.SampleRate
		d := float64(len(samples)) / float64(sampleRate)
		actual = &d
	}

	if e.g2p == nil {
		return e.fallback(ctx, snap, text, actual, reasonNoPhonemizer, "phonemizer unavailable"), nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("lip-sync pipeline panic, using fallback: %v", r)
			data, err = e.fallback(ctx, snap, text, actual, reasonPanic, fmt.Sprintf("pipeline panic: %v", r)), nil
		}
	}()

	symbols, err := e.g2p.Phonemes(text)
	if err != nil {
		logger.Warnf("g2p failed, using fallback: %v", err)
		return e.fallback(ctx, snap, text, actual, reasonG2PError, fmt.Sprintf("g2p failed: %v", err)), nil
	}
	merged := mergeSymbols(phoneme.NormalizeSymbols(symbols))
	if len(merged) == 0 {
		logger.Warnf("g2p returned no phonemes for %q, using fallback", truncate(text, 50))
		return e.fallback(ctx, snap, text, actual, reasonNoPhonemes, "no phonemes"), nil
	}

	frames := toFrames(merged, markEndings(merged, snap.protection))

	var total float64
	if actual != nil {
		total = *actual
	} else {
		total = estimateDuration(text, snap.settings.CharDuration)
	}
	frames = rescale(frames, total)

	if actual != nil {
		if regions := DetectSilenceRegions(samples, sampleRate, defaultMinSilence); len(regions) > 0 {
			frames = carveSilence(frames, regions)
		}
	}
	frames = protectEndings(frames, snap.protection)
	frames = applySensitivity(frames, snap.settings.Sensitivity)

	logger.Debugf("lip-sync: %d frames over %.3fs", len(frames), total)
	return &Data{
		Text:          text,
		TotalDuration: total,
		Frames:        frames,
		SampleRate:    sampleRate,
		Source:        SourcePhonemizer,
	}, nil
}

// fallback spreads a cycling a-i-u-e-o over the first ten characters.
func (e *Engine) fallback(ctx context.Context, snap snapshot, text string, actual *float64, reason, why string) *Data {
	e.metrics.RecordLipSyncFallback(ctx, reason)

	total := estimateDuration(text, snap.settings.CharDuration)
	if actual != nil {
		total = *actual
	}
	return &Data{
		Text:          text,
		TotalDuration: total,
		Frames:        fallbackFrames(utf8.RuneCountInString(text), total),
		SampleRate:    defaultSampleRate,
		Source:        SourceFallback,
		Degraded:      why,
	}
}

func fallbackFrames(chars int, total float64) []Frame {
	per := total / float64(max(chars, 1))
	vowels := []string{"a", "i", "u", "e", "o"}

	n := min(chars, 10)
	frames := make([]Frame, 0, n)
	for i := range n {
		ending := i >= chars-1
		intensity := 0.7
		if ending {
			intensity = 0.8
		}
		frames = append(frames, Frame{
			Timestamp: float64(i) * per,
			Vowel:     vowels[i%len(vowels)],
			Intensity: intensity,
			Duration:  per,
			IsEnding:  ending,
		})
	}
	return frames
}

// Punctuation only counts half a character towards the spoken length.
const estimatePunctuation = "。、！？…～ー・"

// estimateDuration guesses the spoken length of text, at least 0.5s.
func estimateDuration(text string, charDuration float64) float64 {
	chars := utf8.RuneCountInString(text)
	punct := 0
	for _, r := range text {
		if strings.ContainsRune(estimatePunctuation, r) {
			punct++
		}
	}
	effective := max(1, float64(chars)-float64(punct)*0.5)
	return max(0.5, effective*charDuration)
}

// rescale stretches frames end to end over total seconds.
func rescale(frames []Frame, total float64) []Frame {
	var estimated float64
	for _, f := range frames {
		estimated += f.Duration
	}
	if estimated <= 0 {
		return frames
	}
	scale := total / estimated

	var t float64
	for i := range frames {
		frames[i].Timestamp = t
		frames[i].Duration *= scale
		t += frames[i].Duration
	}
	return frames
}

// protectEndings boosts ending frames that carry a vowel.
func protectEndings(frames []Frame, p EndingProtection) []Frame {
	if !p.Enabled {
		return frames
	}
	for i, f := range frames {
		if f.IsEnding && f.Vowel != "sil" {
			frames[i].Intensity = min(1, f.Intensity*p.IntensityBoost)
		}
	}
	return frames
}

func applySensitivity(frames []Frame, sensitivity int) []Frame {
	k := float64(sensitivity) / 100
	for i := range frames {
		frames[i].Intensity = max(0, min(1, frames[i].Intensity*k))
	}
	return frames
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

package processor

import (
	"fmt"
	"math"

	"github.com/linuxmatters/mouthpiece/internal/dsp"
	"github.com/linuxmatters/mouthpiece/internal/mains"
)

// StageID identifies a stage in the cleaning chain
type StageID string

// Stage identifiers for the cleaning chain
const (
	StageHighpass StageID = "highpass" // 4th-order Butterworth rumble filter
	StageHum      StageID = "hum"      // partial-depth notches at mains harmonics
	StageNoise    StageID = "noise"    // spectral subtraction
	StageLoudness StageID = "loudness" // gated-RMS normalisation with peak ceiling
)

// StageOrder defines the cleaning chain.
// Order rationale:
// - Highpass first: removes rumble and DC before anything measures levels
// - Hum: notches are narrow, so they work best on a signal without rumble
// - Noise: the noise profile is estimated after tonal components are gone
// - Loudness last: gain is computed from the cleaned signal
var StageOrder = []StageID{
	StageHighpass,
	StageHum,
	StageNoise,
	StageLoudness,
}

// Cleaning chain defaults
const (
	defaultHighpassFreq = 80.0
	defaultNoiseFloor   = -28.0 // dB, floor of spectral subtraction
	defaultTargetLUFS   = -20.0
	defaultTruePeak     = -1.0 // dBFS ceiling
	defaultLRA          = 11.0 // LU, carried for reference only

	highpassOrder         = 4
	highpassMaxNormalised = 0.95 // cutoffs at or above Nyquist are pulled down to this

	humMinCut = -3.0 // dB, shallower notches are skipped
)

// CleaningPreset configures one run of the cleaning chain.
// Field names mirror the preset keys used by the studio UI.
type CleaningPreset struct {
	Enabled       bool `json:"enabled" toml:"enabled" yaml:"enabled"`
	AutoGenerated bool `json:"auto_generated" toml:"auto_generated" yaml:"auto_generated"`

	// Highpass - removes rumble below the cutoff. Zero or negative disables.
	HighpassFreq float64 `json:"highpass_freq" toml:"highpass_freq" yaml:"highpass_freq"`

	// Hum removal - paired lists; entry i notches HumFrequencies[i] by HumGains[i] dB
	HumRemoval     bool      `json:"hum_removal" toml:"hum_removal" yaml:"hum_removal"`
	HumFrequencies []float64 `json:"hum_frequencies" toml:"hum_frequencies" yaml:"hum_frequencies"`
	HumGains       []float64 `json:"hum_gains" toml:"hum_gains" yaml:"hum_gains"`

	// Noise reduction - spectral subtraction never attenuates a bin below
	// NoiseFloor dB relative to its own level
	NoiseReduction bool    `json:"noise_reduction" toml:"noise_reduction" yaml:"noise_reduction"`
	NoiseFloor     float64 `json:"noise_floor" toml:"noise_floor" yaml:"noise_floor"`

	// Loudness normalisation
	LoudnessNorm bool    `json:"loudness_norm" toml:"loudness_norm" yaml:"loudness_norm"`
	TargetLUFS   float64 `json:"target_lufs" toml:"target_lufs" yaml:"target_lufs"`
	TruePeak     float64 `json:"true_peak" toml:"true_peak" yaml:"true_peak"` // dBFS
	LRA          float64 `json:"lra" toml:"lra" yaml:"lra"`

	// Order of stages; StageOrder when empty
	Order []StageID `json:"-" toml:"-" yaml:"-"`
}

// DefaultPreset returns the baseline cleaning preset for TTS output:
// highpass at 80Hz and loudness normalisation to -20 LUFS / -1 dBFS.
func DefaultPreset() CleaningPreset {
	return CleaningPreset{
		Enabled:      true,
		HighpassFreq: defaultHighpassFreq,
		NoiseFloor:   defaultNoiseFloor,
		LoudnessNorm: true,
		TargetLUFS:   defaultTargetLUFS,
		TruePeak:     defaultTruePeak,
		LRA:          defaultLRA,
	}
}

// legacyHumSeries holds the fixed notch pairs of the single-purpose hum
// preset, grouped by mains series.
var legacyHumSeries = map[float64][][2]float64{
	50: {{50, -20}, {100, -12}, {150, -9}, {200, -6}},
	60: {{60, -20}, {120, -12}, {180, -9}, {240, -6}},
}

// LegacyHumPreset returns the fixed hum-only preset: 50, 60, 100, 120, 150,
// 180, 200 and 240Hz at -20, -20, -12, -12, -9, -9, -6 and -6 dB.
// Each harmonic rank lists the local mains series first.
func LegacyHumPreset(mainsHz int) CleaningPreset {
	p := CleaningPreset{Enabled: true, HumRemoval: true}
	fundamentals := mains.Fundamentals(mainsHz)
	for rank := range legacyHumSeries[50] {
		for _, f0 := range fundamentals {
			pair := legacyHumSeries[f0][rank]
			p.HumFrequencies = append(p.HumFrequencies, pair[0])
			p.HumGains = append(p.HumGains, pair[1])
		}
	}
	return p
}

// LegacyNoisePreset returns the fixed noise-only preset with a -28 dB floor.
func LegacyNoisePreset() CleaningPreset {
	return CleaningPreset{Enabled: true, NoiseReduction: true, NoiseFloor: defaultNoiseFloor}
}

// LegacyLoudnessPreset returns the fixed loudness-only preset: -20 LUFS, -1 dBFS.
func LegacyLoudnessPreset() CleaningPreset {
	return CleaningPreset{
		Enabled:      true,
		LoudnessNorm: true,
		TargetLUFS:   defaultTargetLUFS,
		TruePeak:     defaultTruePeak,
	}
}

// PresetByName resolves a named preset. "auto" is not handled here since it
// needs an analysis; callers use DerivePreset for it.
func PresetByName(name string, mainsHz int) (CleaningPreset, error) {
	switch name {
	case "default", "":
		return DefaultPreset(), nil
	case "legacy-hum":
		return LegacyHumPreset(mainsHz), nil
	case "legacy-noise":
		return LegacyNoisePreset(), nil
	case "legacy-loudness":
		return LegacyLoudnessPreset(), nil
	}
	return CleaningPreset{}, fmt.Errorf("unknown preset %q", name)
}

// stageFunc applies one stage to a mono signal.
type stageFunc func(x []float64, sampleRate int, p *CleaningPreset) ([]float64, error)

// stages maps StageID to its implementation.
var stages = map[StageID]stageFunc{
	StageHighpass: applyHighpass,
	StageHum:      removeHum,
	StageNoise:    reduceNoise,
	StageLoudness: normaliseLoudness,
}

// stageEnabled reports whether the preset switches on id. The highpass
// stage has no switch; a non-positive cutoff disables it instead.
func (p *CleaningPreset) stageEnabled(id StageID) bool {
	switch id {
	case StageHighpass:
		return p.HighpassFreq > 0
	case StageHum:
		return p.HumRemoval
	case StageNoise:
		return p.NoiseReduction
	case StageLoudness:
		return p.LoudnessNorm
	}
	return false
}

// DbToLinear converts decibel value to linear amplitude.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// LinearToDb converts linear amplitude to decibel value.
// Inverse of DbToLinear.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return -120.0 // Practical floor for audio
	}
	return 20.0 * math.Log10(linear)
}

// applyHighpass removes content below p.HighpassFreq with a zero-phase
// 4th-order Butterworth filter.
func applyHighpass(x []float64, sampleRate int, p *CleaningPreset) ([]float64, error) {
	if p.HighpassFreq <= 0 {
		return x, nil
	}
	wn := p.HighpassFreq / (float64(sampleRate) / 2)
	if wn >= 1 {
		wn = highpassMaxNormalised
	}
	y, err := dsp.FiltFilt(dsp.ButterworthHighpass(highpassOrder, wn), x)
	if err != nil {
		return nil, fmt.Errorf("highpass %.0fHz: %w", p.HighpassFreq, err)
	}
	return y, nil
}

// removeHum applies a partial-depth notch for each (frequency, gain) pair.
// Pairs at or above Nyquist, non-positive frequencies and cuts shallower
// than 3 dB are skipped.
func removeHum(x []float64, sampleRate int, p *CleaningPreset) ([]float64, error) {
	pairs := min(len(p.HumFrequencies), len(p.HumGains))
	if pairs == 0 {
		return x, nil
	}
	nyquist := float64(sampleRate) / 2
	out := x
	for i := 0; i < pairs; i++ {
		f, g := p.HumFrequencies[i], p.HumGains[i]
		if f <= 0 || f >= nyquist || g >= humMinCut {
			continue
		}
		var err error
		out, err = applyNotch(out, sampleRate, f, g)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// notchQ narrows the notch at low frequencies where harmonics sit close to
// speech fundamentals.
func notchQ(f float64) float64 {
	switch {
	case f <= 100:
		return 35
	case f <= 200:
		return 30
	case f <= 400:
		return 25
	default:
		return 20
	}
}

// applyNotch adds the difference made by a full notch back onto the signal,
// scaled by the linear value of gainDB. The component at f is left at
// (1 - 10^(gainDB/20)) of its level: -6 dB removes about half of it.
func applyNotch(x []float64, sampleRate int, f, gainDB float64) ([]float64, error) {
	notched, err := dsp.FiltFilt(dsp.Notch(f, notchQ(f), sampleRate), x)
	if err != nil {
		return nil, fmt.Errorf("hum notch %.0fHz: %w", f, err)
	}
	g := DbToLinear(gainDB)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + (notched[i]-x[i])*g
	}
	return out, nil
}

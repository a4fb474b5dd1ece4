package processor

import (
	"math"
)

// Adaptive tuning constants for the cleaning preset.
// These thresholds and limits control how the chain adapts to analysis results.
const (
	// Hum removal thresholds (relative strength, 0-1)
	humEnableStrength   = 0.15 // Above: notch this series
	humHighpassStrength = 0.3  // Above: raise highpass as well

	// Hum notch base gains (dB) by series strength
	humStrengthSevere   = 0.8
	humStrengthStrong   = 0.5
	humStrengthModerate = 0.3
	humGainSevere       = -25.0
	humGainStrong       = -20.0
	humGainModerate     = -15.0
	humGainMild         = -10.0

	// Higher harmonics carry less energy, so their notches are relaxed (dB)
	humRelaxH3H4 = 5.0  // harmonic index 2-3
	humRelaxH5H6 = 8.0  // harmonic index 4-5
	humRelaxH7Up = 10.0 // harmonic index 6+

	// Highpass when hum is strong
	highpassHumFreq = 100.0 // Hz

	// Noise reduction thresholds
	noiseEnableSNR     = 25.0  // dB - below: enable spectral subtraction
	noiseFloorRaiseDB  = -35.0 // dBFS - measured floor above this moves the subtraction floor
	noiseFloorMargin   = 3.0   // dB - subtraction floor sits this far under the measured floor
	noiseFloorLowestDB = -35.0 // dB - never subtract deeper than this

	// True peak ceilings
	truePeakHotThreshold = 0.9   // linear true peak above which headroom is added
	truePeakHotCeiling   = -1.5  // dBFS
	clipRatioThreshold   = 0.001 // fraction of clipped samples on any channel
	truePeakClipCeiling  = -2.0  // dBFS
)

// DerivePreset builds a cleaning preset from analysis measurements.
// This is the main entry point for adaptive configuration.
// It starts from DefaultPreset and tunes each stage independently.
func DerivePreset(result *AnalysisResult, sampleRate int) CleaningPreset {
	preset := DefaultPreset()
	preset.AutoGenerated = true
	if result == nil {
		return preset
	}

	tuneHumRemoval(&preset, result, sampleRate)
	tuneNoiseReduction(&preset, result)
	tuneHighpassFreq(&preset, result)
	tuneTruePeak(&preset, result)

	// Final safety checks
	sanitizePreset(&preset)
	return preset
}

// tuneHumRemoval enables notches for every mains series above 15% strength.
//
// Strategy:
// - Each significant series contributes all harmonics below Nyquist (k = 1..8)
// - Stronger series get deeper notches
// - Higher harmonics get shallower notches than the fundamental
// - Series are visited in analysis order (local mains first)
func tuneHumRemoval(preset *CleaningPreset, result *AnalysisResult, sampleRate int) {
	for _, hum := range result.Hum {
		if hum.Strength <= humEnableStrength {
			continue
		}
		preset.HumRemoval = true
		harmonics := harmonicsBelowNyquist(hum.Fundamental, sampleRate)
		preset.HumFrequencies = append(preset.HumFrequencies, harmonics...)
		preset.HumGains = append(preset.HumGains, humGains(hum.Strength, len(harmonics))...)
	}
}

// harmonicsBelowNyquist returns f0·k for k = 1..8 where f0·k < sampleRate/2.
func harmonicsBelowNyquist(f0 float64, sampleRate int) []float64 {
	nyquist := float64(sampleRate) / 2
	var out []float64
	for k := 1; k <= humMaxHarmonics; k++ {
		if f := f0 * float64(k); f < nyquist {
			out = append(out, f)
		}
	}
	return out
}

// humGains returns one notch gain per harmonic for a series of the given
// strength.
func humGains(strength float64, count int) []float64 {
	var base float64
	switch {
	case strength > humStrengthSevere:
		base = humGainSevere
	case strength > humStrengthStrong:
		base = humGainStrong
	case strength > humStrengthModerate:
		base = humGainModerate
	default:
		base = humGainMild
	}

	gains := make([]float64, count)
	for i := range gains {
		switch {
		case i < 2:
			gains[i] = base
		case i < 4:
			gains[i] = base + humRelaxH3H4
		case i < 6:
			gains[i] = base + humRelaxH5H6
		default:
			gains[i] = base + humRelaxH7Up
		}
	}
	return gains
}

// tuneNoiseReduction enables spectral subtraction for low-SNR clips.
//
// Strategy:
// - SNR unknown → leave disabled (indeterminate is not the same as noisy)
// - SNR below 25 dB → enable
// - Loud noise floor (above -35 dBFS) → floor 3 dB under it, at most -35 dB
func tuneNoiseReduction(preset *CleaningPreset, result *AnalysisResult) {
	if result.SNRDB == nil || *result.SNRDB >= noiseEnableSNR {
		return
	}
	preset.NoiseReduction = true
	if result.NoiseFloorDB != nil && *result.NoiseFloorDB > noiseFloorRaiseDB {
		preset.NoiseFloor = max(noiseFloorLowestDB, *result.NoiseFloorDB-noiseFloorMargin)
	}
}

// tuneHighpassFreq raises the highpass cutoff when any hum series is strong,
// so the filter skirt helps the fundamental notch.
func tuneHighpassFreq(preset *CleaningPreset, result *AnalysisResult) {
	if result.MaxHumStrength() > humHighpassStrength {
		preset.HighpassFreq = highpassHumFreq
	}
}

// tuneTruePeak lowers the loudness ceiling for hot or clipped clips.
// Clipping takes precedence since it needs the most headroom.
func tuneTruePeak(preset *CleaningPreset, result *AnalysisResult) {
	if result.TruePeak > truePeakHotThreshold {
		preset.TruePeak = truePeakHotCeiling
	}
	if result.MaxClipRatio() > clipRatioThreshold {
		preset.TruePeak = truePeakClipCeiling
	}
}

// sanitizePreset ensures no NaN or Inf values remain after adaptive tuning
// and that hum lists pair up.
func sanitizePreset(preset *CleaningPreset) {
	preset.HighpassFreq = sanitizeFloat(preset.HighpassFreq, defaultHighpassFreq)
	preset.NoiseFloor = sanitizeFloat(preset.NoiseFloor, defaultNoiseFloor)
	preset.TargetLUFS = sanitizeFloat(preset.TargetLUFS, defaultTargetLUFS)
	preset.TruePeak = sanitizeFloat(preset.TruePeak, defaultTruePeak)
	preset.LRA = sanitizeFloat(preset.LRA, defaultLRA)

	pairs := min(len(preset.HumFrequencies), len(preset.HumGains))
	preset.HumFrequencies = preset.HumFrequencies[:pairs]
	preset.HumGains = preset.HumGains[:pairs]
	for i := range preset.HumGains {
		preset.HumGains[i] = sanitizeFloat(preset.HumGains[i], humGainMild)
	}
}

// sanitizeFloat returns defaultVal if val is NaN or Inf
func sanitizeFloat(val, defaultVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultVal
	}
	return val
}

// clamp restricts val to the range [lo, hi]
func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

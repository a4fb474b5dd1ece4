package processor

import (
	"math"

	"github.com/linuxmatters/mouthpiece/internal/dsp"
)

// =============================================================================
// Loudness Normalisation Constants
// =============================================================================

// Gated-RMS loudness estimate. Blocks follow the EBU R128 momentary window
// (400ms at a 48kHz reference) with 75% overlap, independent of the clip's
// actual sample rate.
const (
	loudnessBlockSize = 19200 // samples
	loudnessHop       = loudnessBlockSize / 4
	loudnessGateDB    = -70.0 // absolute gate
	lufsOffset        = 0.691 // K-weighting constant from BS.1770
	lufsRMSFloor      = 1e-10
)

// normaliseLoudness applies gain to reach p.TargetLUFS, then scales down
// uniformly if the resulting sample peak exceeds p.TruePeak.
func normaliseLoudness(x []float64, _ int, p *CleaningPreset) ([]float64, error) {
	current := RMSToLUFS(GatedRMS(x))
	gain := DbToLinear(p.TargetLUFS - current)

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * gain
	}

	ceiling := DbToLinear(p.TruePeak)
	if peak := dsp.PeakAbs(out); peak > ceiling {
		limit := ceiling / peak
		for i := range out {
			out[i] *= limit
		}
	}
	return out, nil
}

// GatedRMS returns the RMS of overlapping 19200-sample blocks whose level is
// above -70 dBFS, combined as sqrt(mean(block_rms²)). Clips with no block
// above the gate (including clips shorter than one block) fall back to the
// plain RMS of the whole signal.
func GatedRMS(x []float64) float64 {
	gate := DbToLinear(loudnessGateDB)

	var sum float64
	var count int
	for start := 0; start < len(x)-loudnessBlockSize; start += loudnessHop {
		r := dsp.RMS(x[start : start+loudnessBlockSize])
		if r > gate {
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return dsp.RMS(x)
	}
	return math.Sqrt(sum / float64(count))
}

// RMSToLUFS converts an RMS level to an approximate loudness value.
// There is no K-weighting filter; only the BS.1770 offset is applied.
func RMSToLUFS(rms float64) float64 {
	return 20*math.Log10(max(rms, lufsRMSFloor)) + lufsOffset
}

package lipsync

import (
	"math"

	"github.com/linuxmatters/mouthpiece/internal/dsp"
	"github.com/linuxmatters/mouthpiece/internal/logger"
)

// Silence detection
const (
	silenceFrameSecs  = 0.05 // 50ms RMS frames, hopped by half
	defaultMinSilence = 0.2  // shortest region reported, seconds
	silenceMeanRatio  = 0.15 // threshold as a fraction of mean frame RMS
	silencePercentile = 5
	silenceFloorRMS   = 1e-6 // frames at or below are ignored for the threshold
	silenceFixedRMS   = 0.01 // threshold when every frame is digital silence
)

// Region is a span of silence in seconds.
type Region struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the region length.
func (r Region) Duration() float64 { return r.End - r.Start }

// DetectSilenceRegions finds runs of quiet frames in mono samples. The
// threshold adapts to the clip: the larger of 15% of the mean frame RMS and
// the 5th percentile, both over frames that are not digital silence.
// Regions shorter than minDuration are dropped.
func DetectSilenceRegions(samples []float64, sampleRate int, minDuration float64) []Region {
	frameLen := int(float64(sampleRate) * silenceFrameSecs)
	hop := frameLen / 2
	if hop <= 0 || len(samples) < frameLen {
		return nil
	}
	numFrames := (len(samples)-frameLen)/hop + 1

	rms := make([]float64, numFrames)
	audible := make([]float64, 0, numFrames)
	for i := range rms {
		start := i * hop
		rms[i] = dsp.RMS(samples[start : start+frameLen])
		if rms[i] > silenceFloorRMS {
			audible = append(audible, rms[i])
		}
	}

	threshold := silenceFixedRMS
	if len(audible) > 0 {
		threshold = math.Max(dsp.Mean(audible)*silenceMeanRatio, dsp.Percentile(audible, silencePercentile))
	}
	logger.Debugf("silence threshold %.6f over %d frames", threshold, numFrames)

	frameTime := func(i int) float64 { return float64(i*hop) / float64(sampleRate) }

	var regions []Region
	inSilence := false
	var start float64
	for i, v := range rms {
		quiet := v < threshold
		switch {
		case quiet && !inSilence:
			inSilence = true
			start = frameTime(i)
		case !quiet && inSilence:
			inSilence = false
			if end := frameTime(i); end-start >= minDuration {
				regions = append(regions, Region{Start: start, End: end})
			}
		}
	}
	if inSilence {
		if end := frameTime(numFrames - 1); end-start >= minDuration {
			regions = append(regions, Region{Start: start, End: end})
		}
	}
	return regions
}

// carveSilence silences every frame whose midpoint falls inside a region.
func carveSilence(frames []Frame, regions []Region) []Frame {
	carved := 0
	for i, f := range frames {
		if f.Vowel == "sil" {
			continue
		}
		mid := f.Timestamp + f.Duration/2
		for _, r := range regions {
			if r.Start <= mid && mid <= r.End {
				frames[i].Vowel = "sil"
				frames[i].Intensity = 0
				frames[i].IsEnding = false
				carved++
				break
			}
		}
	}
	if carved > 0 {
		logger.Debugf("silenced %d frames across %d regions", carved, len(regions))
	}
	return frames
}

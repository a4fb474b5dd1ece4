// Package processor handles audio analysis and cleaning of synthesized speech.
package processor

import (
	"math"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/dsp"
	"github.com/linuxmatters/mouthpiece/internal/mains"
)

// Analysis constants.
// Thresholds are tuned for TTS output, which is short and has little room tone.
const (
	// Clipping detection
	clipThreshold = 0.9995 // |x| at or above this counts as clipped
	clipMinRun    = 3      // consecutive clipped samples that form a run

	// True peak estimation
	truePeakUpsample = 4 // linear-interpolation oversampling factor

	// Noise floor / SNR framing
	noiseWindowMax  = 1024 // samples, shortened to n/4 for short clips
	noiseQuantile   = 0.2  // frames at or below this quantile are treated as noise
	levelEpsilon    = 1e-12
	powerEpsilon    = 1e-12 // added to mean square before sqrt
	spectrumEpsilon = 1e-9  // added to the spectral maximum before normalising

	// Hum detection
	humFFTMax       = 16384 // samples
	humFFTMin       = 1024  // samples, shorter clips are zero padded
	humBandwidth    = 2.0   // Hz either side of each harmonic
	humMaxHarmonics = 8

	// Spectral flatness framing
	flatnessFFTMax = 2048
	flatnessFFTMin = 512

	// Silence detection
	silenceThresholdDB = -60.0
)

// HumMeasurement is the relative strength of one mains hum series.
type HumMeasurement struct {
	Fundamental float64 `json:"fundamental"` // Hz (50 or 60)
	Strength    float64 `json:"strength"`    // strongest harmonic / spectral max, 0-1
}

// AnalysisResult contains the measurements of one clip.
// Per-channel slices are indexed by channel. NoiseFloorDB and SNRDB are nil
// when the clip is too short to frame, and must not be read as zero.
type AnalysisResult struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Duration   float64 `json:"duration"` // seconds

	PeakPerChannel []float64 `json:"peak_per_ch"`
	RMSPerChannel  []float64 `json:"rms_per_ch"`
	MeanPerChannel []float64 `json:"mean_per_ch"` // DC offset

	ClipRatioPerChannel []float64 `json:"clip_ratio_per_ch"`
	ClipRunsTotal       int       `json:"clip_runs_total"`

	TruePeak float64 `json:"true_peak_est"` // linear

	NoiseFloorDB *float64 `json:"noise_floor_dbfs"`
	SNRDB        *float64 `json:"snr_db"`

	// Hum holds one entry per inspected fundamental, local mains first.
	Hum []HumMeasurement `json:"hum_detection"`

	SpectralFlatness float64 `json:"spectral_flatness"` // 0 = tonal, 1 = noise-like

	SilenceRatio    float64 `json:"silence_ratio"`
	LeadingSilence  float64 `json:"leading_silence_sec"`
	TrailingSilence float64 `json:"trailing_silence_sec"`
}

// HumStrength returns the measured strength for fundamental, or 0 when that
// series was not inspected.
func (r *AnalysisResult) HumStrength(fundamental float64) float64 {
	for _, h := range r.Hum {
		if h.Fundamental == fundamental {
			return h.Strength
		}
	}
	return 0
}

// MaxHumStrength returns the strongest hum series, or 0.
func (r *AnalysisResult) MaxHumStrength() float64 {
	strongest := 0.0
	for _, h := range r.Hum {
		strongest = max(strongest, h.Strength)
	}
	return strongest
}

// MaxClipRatio returns the largest per-channel clip ratio.
func (r *AnalysisResult) MaxClipRatio() float64 {
	worst := 0.0
	for _, c := range r.ClipRatioPerChannel {
		worst = max(worst, c)
	}
	return worst
}

// Analyzer measures clips. The zero value inspects 50Hz first.
type Analyzer struct {
	// Fundamentals lists the hum series to inspect, in reporting order.
	Fundamentals []float64
}

// NewAnalyzer returns an Analyzer that inspects the given local mains
// frequency first.
func NewAnalyzer(mainsHz int) *Analyzer {
	return &Analyzer{Fundamentals: mains.Fundamentals(mainsHz)}
}

// Analyze measures buf using 50Hz-first hum ordering.
func Analyze(buf *audio.Buffer) *AnalysisResult {
	return NewAnalyzer(mains.Hz50).Analyze(buf)
}

// Analyze measures buf. Per-channel statistics use every channel; spectral
// and noise measurements use the mono mix.
func (a *Analyzer) Analyze(buf *audio.Buffer) *AnalysisResult {
	fundamentals := a.Fundamentals
	if len(fundamentals) == 0 {
		fundamentals = mains.Fundamentals(mains.Hz50)
	}

	sr := buf.SampleRate
	n := buf.Len()
	result := &AnalysisResult{
		SampleRate: sr,
		Channels:   buf.NumChannels(),
		Duration:   buf.Duration(),
	}

	for _, ch := range buf.Channels {
		result.PeakPerChannel = append(result.PeakPerChannel, dsp.PeakAbs(ch))
		result.RMSPerChannel = append(result.RMSPerChannel, dsp.RMS(ch))
		result.MeanPerChannel = append(result.MeanPerChannel, dsp.Mean(ch))
		ratio, runs := clipStats(ch)
		result.ClipRatioPerChannel = append(result.ClipRatioPerChannel, ratio)
		result.ClipRunsTotal += runs
		result.TruePeak = max(result.TruePeak, interpolatedPeak(ch, truePeakUpsample))
	}

	mono := buf.Mono()
	result.NoiseFloorDB, result.SNRDB = estimateNoiseFloorAndSNR(mono)
	result.Hum = detectHum(mono, sr, fundamentals)
	result.SpectralFlatness = spectralFlatness(mono)

	mask := silenceMask(buf)
	silent := 0
	for _, s := range mask {
		if s {
			silent++
		}
	}
	if n > 0 {
		result.SilenceRatio = float64(silent) / float64(n)
	}
	result.LeadingSilence = edgeSilence(mask, sr, true)
	result.TrailingSilence = edgeSilence(mask, sr, false)

	return result
}

// Dbfs converts a linear level to dBFS, bounded below at -240 dB.
func Dbfs(v float64) float64 {
	return 20 * math.Log10(max(v, levelEpsilon))
}

// clipStats returns the fraction of clipped samples and the number of clipped
// runs of at least clipMinRun samples.
func clipStats(x []float64) (ratio float64, runs int) {
	if len(x) == 0 {
		return 0, 0
	}
	clipped, run := 0, 0
	for _, v := range x {
		if math.Abs(v) >= clipThreshold {
			clipped++
			run++
			continue
		}
		if run >= clipMinRun {
			runs++
		}
		run = 0
	}
	if run >= clipMinRun {
		runs++
	}
	return float64(clipped) / float64(len(x)), runs
}

// interpolatedPeak returns max |y| where y is x linearly resampled onto
// len(x)·factor points spanning [0, len(x)-1].
func interpolatedPeak(x []float64, factor int) float64 {
	peak := 0.0
	for _, v := range dsp.LinearInterp(x, len(x)*factor) {
		peak = max(peak, math.Abs(v))
	}
	return peak
}

// estimateNoiseFloorAndSNR frames the mono signal and treats the quietest
// fifth of frames as noise and the median frame as signal.
// Both results are nil when the clip is too short to frame.
func estimateNoiseFloorAndSNR(mono []float64) (noiseDB, snrDB *float64) {
	n := len(mono)
	window := min(noiseWindowMax, n/4)
	hop := window / 2
	if window < 2 || n < window {
		return nil, nil
	}
	numFrames := (n-window)/hop + 1
	if numFrames <= 0 {
		return nil, nil
	}

	frameRMS := make([]float64, numFrames)
	for i := range frameRMS {
		seg := mono[i*hop : i*hop+window]
		frameRMS[i] = math.Sqrt(meanSquare(seg) + powerEpsilon)
	}

	threshold := dsp.Quantile(frameRMS, noiseQuantile)
	var noiseFrames []float64
	for _, r := range frameRMS {
		if r <= threshold {
			noiseFrames = append(noiseFrames, r)
		}
	}
	noiseRMS := dsp.Median(frameRMS)
	if len(noiseFrames) > 0 {
		noiseRMS = dsp.Median(noiseFrames)
	}
	signalRMS := dsp.Median(frameRMS)

	noise := Dbfs(noiseRMS)
	snr := Dbfs(signalRMS) - noise
	return &noise, &snr
}

func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}

// detectHum measures each fundamental's strongest harmonic (k = 1..8, below
// Nyquist) relative to the spectral maximum of one Hann-windowed frame.
//
// Strategy:
//   - Frame length is the largest power of two up to 16384, at least 1024
//   - Short clips are zero padded to the frame length
//   - Each harmonic's level is the peak bin within ±2Hz
func detectHum(mono []float64, sampleRate int, fundamentals []float64) []HumMeasurement {
	size := max(min(humFFTMax, dsp.PrevPow2(len(mono))), humFFTMin)
	frame := make([]float64, size)
	copy(frame, mono)
	dsp.ApplyWindow(frame, frame, dsp.Hann(size))

	fft := dsp.NewRealFFT(size)
	spectrum := fft.Magnitude(nil, frame)

	globalMax := 0.0
	for _, m := range spectrum {
		globalMax = max(globalMax, m)
	}
	norm := globalMax + spectrumEpsilon

	nyquist := float64(sampleRate) / 2
	out := make([]HumMeasurement, 0, len(fundamentals))
	for _, f0 := range fundamentals {
		strongest := 0.0
		for k := 1; k <= humMaxHarmonics; k++ {
			f := f0 * float64(k)
			if f >= nyquist {
				continue
			}
			strongest = max(strongest, bandPeak(spectrum, fft, sampleRate, f, humBandwidth))
		}
		out = append(out, HumMeasurement{
			Fundamental: f0,
			Strength:    clamp(strongest/norm, 0, 1),
		})
	}
	return out
}

// bandPeak returns the largest magnitude among bins within ±bw of centre,
// or 0 when no bin falls inside the band.
func bandPeak(spectrum []float64, fft *dsp.RealFFT, sampleRate int, centre, bw float64) float64 {
	peak := 0.0
	for k, m := range spectrum {
		f := fft.BinFrequency(k, sampleRate)
		if f < centre-bw {
			continue
		}
		if f > centre+bw {
			break
		}
		peak = max(peak, m)
	}
	return peak
}

// spectralFlatness returns the median Wiener entropy (geometric over
// arithmetic mean of the magnitude spectrum) across half-overlapping frames.
// Returns 0 when the clip is shorter than one frame.
func spectralFlatness(mono []float64) float64 {
	size := max(min(flatnessFFTMax, dsp.PrevPow2(len(mono))), flatnessFFTMin)
	hop := size / 2
	window := dsp.Hann(size)
	fft := dsp.NewRealFFT(size)

	var values []float64
	frame := make([]float64, size)
	var mag []float64
	for start := 0; start < len(mono)-size; start += hop {
		dsp.ApplyWindow(frame, mono[start:start+size], window)
		mag = fft.Magnitude(mag, frame)

		logSum, sum := 0.0, 0.0
		for _, m := range mag {
			m += levelEpsilon
			logSum += math.Log(m)
			sum += m
		}
		count := float64(len(mag))
		values = append(values, math.Exp(logSum/count)/(sum/count))
	}
	if len(values) == 0 {
		return 0
	}
	return dsp.Median(values)
}

// silenceMask marks samples below -60 dBFS on every channel.
func silenceMask(buf *audio.Buffer) []bool {
	threshold := DbToLinear(silenceThresholdDB)
	mask := make([]bool, buf.Len())
	for i := range mask {
		silent := true
		for _, ch := range buf.Channels {
			if math.Abs(ch[i]) >= threshold {
				silent = false
				break
			}
		}
		mask[i] = silent
	}
	return mask
}

// edgeSilence returns the silent run length in seconds at the start (or end)
// of the mask. A fully silent clip reports its whole length.
func edgeSilence(mask []bool, sampleRate int, fromStart bool) float64 {
	if len(mask) == 0 || sampleRate <= 0 {
		return 0
	}
	for i := range mask {
		idx := i
		if !fromStart {
			idx = len(mask) - 1 - i
		}
		if !mask[idx] {
			return float64(i) / float64(sampleRate)
		}
	}
	return float64(len(mask)) / float64(sampleRate)
}

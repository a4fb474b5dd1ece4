package realtime

import (
	"cmp"
	"slices"

	"github.com/linuxmatters/mouthpiece/internal/dsp"
)

// Detection thresholds
const (
	minDominantSamples = 64   // shorter chunks report no dominant frequency
	formantLowHz       = 200  // formant search band, Hz
	formantHighHz      = 3000
	formantPeakRatio   = 0.1  // peaks below this fraction of the band maximum are ignored
	maxFormants        = 4
	silenceRMS         = 0.01
	silenceConfidence  = 0.8
	simpleConfidence   = 0.6
	formantIntensity   = 5.0 // rms multiplier for formant results
	simpleIntensity    = 3.0 // rms multiplier for dominant-frequency results
)

// formantRange is the expected F1 and F2 band of one vowel, in Hz.
type formantRange struct {
	vowel      string
	f1Lo, f1Hi float64
	f2Lo, f2Hi float64
}

// formantTable lists Japanese vowel formants. Order breaks score ties.
var formantTable = []formantRange{
	{"a", 600, 900, 1000, 1400},
	{"i", 200, 400, 2000, 2800},
	{"u", 200, 400, 600, 1200},
	{"e", 400, 600, 1400, 2000},
	{"o", 400, 600, 600, 1200},
}

// analyzer holds the FFT plans of one consumer. It is not safe for
// concurrent use.
type analyzer struct {
	plans   map[int]*dsp.RealFFT
	windows map[int][]float64
	scratch []float64
}

func newAnalyzer() *analyzer {
	return &analyzer{
		plans:   make(map[int]*dsp.RealFFT),
		windows: make(map[int][]float64),
	}
}

func (a *analyzer) plan(n int) *dsp.RealFFT {
	p, ok := a.plans[n]
	if !ok {
		p = dsp.NewRealFFT(n)
		a.plans[n] = p
	}
	return p
}

func (a *analyzer) window(n int) []float64 {
	w, ok := a.windows[n]
	if !ok {
		w = dsp.Hann(n)
		a.windows[n] = w
	}
	return w
}

// dominantFrequency returns the frequency of the strongest bin below
// Nyquist, or 0 for chunks too short to analyse.
func (a *analyzer) dominantFrequency(samples []float64, sampleRate int) float64 {
	n := len(samples)
	if n < minDominantSamples {
		return 0
	}
	p := a.plan(n)
	mag := p.Magnitude(nil, samples)[:n/2]
	best := 0
	for k, v := range mag {
		if v > mag[best] {
			best = k
		}
	}
	return p.BinFrequency(best, sampleRate)
}

type peak struct {
	freq, power float64
}

// formants returns up to four spectral peaks between 200 and 3000 Hz,
// strongest first by power and then sorted by frequency.
func (a *analyzer) formants(frame []float64, sampleRate int) []float64 {
	n := len(frame)
	if n < 2 {
		return nil
	}
	p := a.plan(n)
	a.scratch = dsp.ApplyWindow(a.scratch, frame, a.window(n))
	mag := p.Magnitude(nil, a.scratch)[:n/2]

	lo := nearestBin(p, formantLowHz, sampleRate, len(mag))
	hi := nearestBin(p, formantHighHz, sampleRate, len(mag))
	if lo >= hi {
		return nil
	}
	band := mag[lo:hi]
	floor := slices.Max(band) * formantPeakRatio

	var peaks []peak
	for i := 1; i < len(band)-1; i++ {
		if band[i] > band[i-1] && band[i] > band[i+1] && band[i] > floor {
			peaks = append(peaks, peak{freq: p.BinFrequency(lo+i, sampleRate), power: band[i]})
		}
	}
	slices.SortStableFunc(peaks, func(x, y peak) int { return cmp.Compare(y.power, x.power) })
	peaks = peaks[:min(len(peaks), maxFormants)]

	freqs := make([]float64, len(peaks))
	for i, pk := range peaks {
		freqs[i] = pk.freq
	}
	slices.Sort(freqs)
	return freqs
}

// nearestBin returns the bin below bins whose centre is closest to hz.
func nearestBin(p *dsp.RealFFT, hz float64, sampleRate, bins int) int {
	best, bestDist := 0, -1.0
	for k := range bins {
		d := p.BinFrequency(k, sampleRate) - hz
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// classifyFormants scores F1 and F2 against every vowel and returns the
// best match with its score.
func classifyFormants(f1, f2 float64) (string, float64) {
	vowel, best := "a", 0.0
	for _, r := range formantTable {
		score := (rangeScore(f1, r.f1Lo, r.f1Hi) + rangeScore(f2, r.f2Lo, r.f2Hi)) / 2
		if score > best {
			vowel, best = r.vowel, score
		}
	}
	return vowel, best
}

// rangeScore is 1 at the centre of [lo, hi], 0 at its edges, and decays
// outside it to 0 at twice the range width.
func rangeScore(v, lo, hi float64) float64 {
	width := hi - lo
	if lo <= v && v <= hi {
		centre := (lo + hi) / 2
		d := v - centre
		if d < 0 {
			d = -d
		}
		return 1 - d/(width/2)
	}
	d := lo - v
	if v > hi {
		d = v - hi
	}
	return max(0, 1-d/(2*width))
}

// simpleDetect classifies a chunk by loudness and dominant frequency.
func simpleDetect(info FrameInfo) Result {
	if info.RMS < silenceRMS {
		return Result{Timestamp: info.Timestamp, Vowel: "sil", Confidence: silenceConfidence}
	}
	f := info.DominantFreq
	var vowel string
	switch {
	case f < 500:
		vowel = "u"
	case f < 1000:
		vowel = "o"
	case f < 1500:
		vowel = "a"
	case f < 2000:
		vowel = "e"
	default:
		vowel = "i"
	}
	return Result{
		Timestamp:  info.Timestamp,
		Vowel:      vowel,
		Confidence: simpleConfidence,
		F1:         f * 0.3,
		F2:         f,
		Intensity:  min(1, info.RMS*simpleIntensity),
	}
}

// detect estimates the vowel of frame. The boolean is false when formant
// analysis found a match below the confidence threshold.
func (a *analyzer) detect(frame []float64, info FrameInfo, d Detection) (Result, bool) {
	if !d.FormantAnalysis {
		return simpleDetect(info), true
	}
	f := a.formants(frame, info.SampleRate)
	if len(f) < 2 {
		return simpleDetect(info), true
	}
	vowel, confidence := classifyFormants(f[0], f[1])
	if confidence < d.ConfidenceThreshold {
		return Result{}, false
	}
	return Result{
		Timestamp:  info.Timestamp,
		Vowel:      vowel,
		Confidence: confidence,
		F1:         f[0],
		F2:         f[1],
		Intensity:  min(1, info.RMS*formantIntensity),
	}, true
}

// smoother reports the most common vowel over the last few results. Ties go
// to the most recent.
type smoother struct {
	history []string
}

func (s *smoother) apply(vowel string, window int) string {
	if window <= 1 {
		s.history = s.history[:0]
		return vowel
	}
	s.history = append(s.history, vowel)
	if over := len(s.history) - window; over > 0 {
		s.history = s.history[over:]
	}

	best, bestCount := vowel, 0
	for i := len(s.history) - 1; i >= 0; i-- {
		v := s.history[i]
		n := 0
		for _, w := range s.history {
			if w == v {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = v, n
		}
	}
	return best
}

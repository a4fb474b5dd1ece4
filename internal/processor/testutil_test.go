package processor

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/mouthpiece/internal/audio"
)

// TestAudioOptions configures the synthetic audio to generate
type TestAudioOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   int     // Sample rate (default: 24000)
	Channels     int     // Channel count (default: 1)
	ToneFreq     float64 // Sine wave frequency in Hz (0 = no tone)
	ToneLevel    float64 // Tone level in dBFS (e.g., -23.0)
	HumFreq      float64 // Mains hum fundamental in Hz (0 = no hum)
	HumLevel     float64 // Hum level in dBFS
	NoiseLevel   float64 // White noise level in dBFS (0 = no noise, -60 = quiet noise)
	SilenceGap   struct {
		Start    float64 // Start time of silence gap in seconds
		Duration float64 // Duration of silence gap in seconds
	}
}

// generateTestAudio creates a synthetic buffer for testing.
// The generated audio can include a sine wave tone, mains hum, white noise
// and a silence gap. Every channel carries the same signal.
func generateTestAudio(t *testing.T, opts TestAudioOptions) *audio.Buffer {
	t.Helper()

	// Set defaults
	if opts.SampleRate == 0 {
		opts.SampleRate = 24000
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 2.0
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}

	totalSamples := int(opts.DurationSecs * float64(opts.SampleRate))
	samples := make([]float64, totalSamples)

	toneAmp := 0.0
	if opts.ToneFreq > 0 && opts.ToneLevel < 0 {
		toneAmp = math.Pow(10.0, opts.ToneLevel/20.0)
	}
	humAmp := 0.0
	if opts.HumFreq > 0 && opts.HumLevel < 0 {
		humAmp = math.Pow(10.0, opts.HumLevel/20.0)
	}
	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10.0, opts.NoiseLevel/20.0)
	}

	silenceStart := int(opts.SilenceGap.Start * float64(opts.SampleRate))
	silenceEnd := int((opts.SilenceGap.Start + opts.SilenceGap.Duration) * float64(opts.SampleRate))

	nextRandom := newLCG(12345)

	for i := 0; i < totalSamples; i++ {
		if i >= silenceStart && i < silenceEnd && opts.SilenceGap.Duration > 0 {
			continue
		}

		tm := float64(i) / float64(opts.SampleRate)
		var sample float64
		if toneAmp > 0 {
			sample += toneAmp * math.Sin(2.0*math.Pi*opts.ToneFreq*tm)
		}
		if humAmp > 0 {
			sample += humAmp * math.Sin(2.0*math.Pi*opts.HumFreq*tm)
		}
		if noiseAmp > 0 {
			sample += noiseAmp * nextRandom()
		}
		samples[i] = math.Max(-1, math.Min(1, sample))
	}

	return audio.Duplicate(samples, opts.Channels, opts.SampleRate)
}

// newLCG returns a deterministic uniform generator over [-1, 1]
// (avoids importing math/rand and seeding complexity)
func newLCG(seed uint32) func() float64 {
	rngState := seed
	return func() float64 {
		// LCG parameters from Numerical Recipes
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}
}

// writeTestWAV writes buf into a temp directory and returns its path.
func writeTestWAV(t *testing.T, buf *audio.Buffer, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := audio.WriteWAV(path, buf); err != nil {
		t.Fatalf("failed to write WAV file: %v", err)
	}
	return path
}

// levelDB returns the RMS level of x in dBFS.
func levelDB(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	if len(x) == 0 {
		return -240
	}
	return Dbfs(math.Sqrt(sum / float64(len(x))))
}

// toneLevelDB returns the level of the component at freq, measured by
// correlating the middle of x against a sine and cosine.
func toneLevelDB(x []float64, freq float64, sampleRate int) float64 {
	start, end := len(x)/4, 3*len(x)/4
	var re, im float64
	for i := start; i < end; i++ {
		phase := 2 * math.Pi * freq * float64(i) / float64(sampleRate)
		re += x[i] * math.Cos(phase)
		im += x[i] * math.Sin(phase)
	}
	n := float64(end - start)
	amp := 2 * math.Hypot(re, im) / n
	return Dbfs(amp)
}

func ptr(v float64) *float64 { return &v }

package processor

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/dsp"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/observe"
)

// ProgressFunc is called before each enabled stage runs.
// index counts from 0 over the enabled stages only.
type ProgressFunc func(stage StageID, index, total int)

// Process runs the cleaning chain on buf and returns the cleaned audio.
//
// Processing happens on the mono mix; multi-channel input comes back with
// the cleaned signal copied to every channel. A disabled preset returns buf
// itself. Any stage error or panic also returns buf unchanged (fail-open),
// so a caller always has playable audio.
func Process(buf *audio.Buffer, preset CleaningPreset) *audio.Buffer {
	out, err := process(buf, preset, nil)
	if err != nil {
		return buf
	}
	return out
}

// process is Process with progress reporting and the failure exposed.
// The returned buffer is buf itself whenever err is non-nil.
func process(buf *audio.Buffer, preset CleaningPreset, progress ProgressFunc) (out *audio.Buffer, err error) {
	if !preset.Enabled || buf.Len() == 0 {
		return buf, nil
	}

	metrics := observe.DefaultMetrics()
	start := time.Now()
	defer func() {
		metrics.CleanDuration.Record(context.Background(), time.Since(start).Seconds())
		if r := recover(); r != nil {
			err = fmt.Errorf("cleaning panicked: %v", r)
		}
		if err != nil {
			logger.Errorf("cleaning failed, returning original audio: %v", err)
			metrics.CleanFailOpen.Add(context.Background(), 1)
			out = buf
		}
	}()

	mono := slices.Clone(buf.Mono())
	cleaned, err := ProcessMono(mono, buf.SampleRate, &preset, progress)
	if err != nil {
		return buf, err
	}
	return audio.Duplicate(cleaned, buf.NumChannels(), buf.SampleRate), nil
}

// ProcessMono applies the enabled stages of preset to x in order.
// Unlike Process it does not recover from failure; the first stage error is
// returned.
func ProcessMono(x []float64, sampleRate int, preset *CleaningPreset, progress ProgressFunc) ([]float64, error) {
	order := preset.Order
	if len(order) == 0 {
		order = StageOrder
	}

	var enabled []StageID
	for _, id := range order {
		if _, ok := stages[id]; ok && preset.stageEnabled(id) {
			enabled = append(enabled, id)
		}
	}

	out := x
	for i, id := range enabled {
		if progress != nil {
			progress(id, i, len(enabled))
		}
		var err error
		out, err = stages[id](out, sampleRate, preset)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", id, err)
		}
	}
	return out, nil
}

// ProcessingResult contains the results of cleaning one file
type ProcessingResult struct {
	InputPath  string
	OutputPath string
	Preset     CleaningPreset
	Before     *AnalysisResult
	After      *AnalysisResult
	Effect     ProcessingEffect
	FailedOpen bool  // cleaning failed and the original audio was written
	Err        error // cause when FailedOpen
}

// FileOptions controls ProcessFile.
type FileOptions struct {
	// OutputPath defaults to <name>-clean.wav next to the input.
	OutputPath string
	// Preset is used as given; nil derives one from the input analysis.
	Preset *CleaningPreset
	// MainsHz orders hum fundamentals in analysis (50 or 60).
	MainsHz int
	// Progress receives stage updates; may be nil.
	Progress ProgressFunc
}

// ProcessFile reads a WAV file, analyses it, cleans it and writes the result
// as 16-bit WAV. Cleaning failures do not fail the call; the original audio
// is written and the result is flagged FailedOpen.
func ProcessFile(inputPath string, opts FileOptions) (*ProcessingResult, error) {
	buf, _, err := audio.ReadWAV(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	analyzer := NewAnalyzer(opts.MainsHz)
	result := &ProcessingResult{
		InputPath:  inputPath,
		OutputPath: opts.OutputPath,
		Before:     analyzer.Analyze(buf),
	}
	if result.OutputPath == "" {
		result.OutputPath = generateOutputPath(inputPath)
	}

	if opts.Preset != nil {
		result.Preset = *opts.Preset
	} else {
		result.Preset = DerivePreset(result.Before, buf.SampleRate)
	}

	cleaned, err := process(buf, result.Preset, opts.Progress)
	if err != nil {
		result.FailedOpen = true
		result.Err = err
	}

	result.After = analyzer.Analyze(cleaned)
	result.Effect = AnalyzeProcessingEffect(buf.Mono(), cleaned.Mono())

	if err := audio.WriteWAV(result.OutputPath, cleaned); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	return result, nil
}

// generateOutputPath creates the output filename from the input filename
// Example: /path/to/line.wav → /path/to/line-clean.wav
func generateOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	filename := filepath.Base(inputPath)
	ext := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, ext)

	return filepath.Join(dir, nameWithoutExt+"-clean.wav")
}

// =============================================================================
// Standalone helpers
// =============================================================================

// declipThreshold marks samples treated as clipped by FixClipping.
const declipThreshold = 0.99

// FixClipping replaces each clipped run with a straight line between the
// samples either side of it. Runs touching the first or last sample are
// left alone. Returns x itself when nothing is clipped.
func FixClipping(x []float64) []float64 {
	n := len(x)
	clipped := make([]int, n)
	found := false
	for i, v := range x {
		if math.Abs(v) >= declipThreshold {
			clipped[i] = 1
			found = true
		}
	}
	if !found {
		return x
	}

	// Edges of the clipped mask: a run starts at the first clipped sample
	// and ends at the first unclipped sample after it.
	var starts, ends []int
	for i := 1; i < n; i++ {
		switch clipped[i] - clipped[i-1] {
		case 1:
			starts = append(starts, i)
		case -1:
			ends = append(ends, i)
		}
	}
	if len(starts) > len(ends) {
		ends = append(ends, n-1)
	} else if len(ends) > len(starts) {
		starts = append([]int{0}, starts...)
	}

	fixed := slices.Clone(x)
	for k := 0; k < min(len(starts), len(ends)); k++ {
		start, end := starts[k], ends[k]
		if end <= start || start < 1 || end >= n-1 {
			continue
		}
		line := dsp.Linspace(fixed[start-1], fixed[end+1], end-start+1, true)
		copy(fixed[start:end+1], line)
	}
	return fixed
}

// CreateTestTone returns amplitude·sin(2πft) sampled at sampleRate for
// duration seconds, with t over [0, duration) excluding the endpoint.
func CreateTestTone(frequency, duration float64, sampleRate int, amplitude float64) []float64 {
	n := int(float64(sampleRate) * duration)
	t := dsp.Linspace(0, duration, n, false)
	tone := make([]float64, n)
	for i, ti := range t {
		tone[i] = amplitude * math.Sin(2*math.Pi*frequency*ti)
	}
	return tone
}

// SignalMetrics holds level statistics of one signal.
type SignalMetrics struct {
	RMS          float64 `json:"rms"`
	Peak         float64 `json:"peak"`
	DynamicRange float64 `json:"dynamic_range"` // peak / RMS
}

// ProcessingEffect compares a signal before and after cleaning.
type ProcessingEffect struct {
	RMSChangeDB        float64       `json:"rms_change_db"`
	PeakChangeDB       float64       `json:"peak_change_db"`
	DynamicRangeChange float64       `json:"dynamic_range_change"` // ratio, 1 = unchanged
	Original           SignalMetrics `json:"original_metrics"`
	Processed          SignalMetrics `json:"processed_metrics"`
}

const effectEpsilon = 1e-10

func signalMetrics(x []float64) SignalMetrics {
	rms := dsp.RMS(x)
	peak := dsp.PeakAbs(x)
	return SignalMetrics{RMS: rms, Peak: peak, DynamicRange: peak / (rms + effectEpsilon)}
}

// AnalyzeProcessingEffect reports how cleaning changed level and crest factor.
func AnalyzeProcessingEffect(original, processed []float64) ProcessingEffect {
	o := signalMetrics(original)
	p := signalMetrics(processed)
	return ProcessingEffect{
		RMSChangeDB:        20 * math.Log10(p.RMS/(o.RMS+effectEpsilon)),
		PeakChangeDB:       20 * math.Log10(p.Peak/(o.Peak+effectEpsilon)),
		DynamicRangeChange: p.DynamicRange / (o.DynamicRange + effectEpsilon),
		Original:           o,
		Processed:          p,
	}
}

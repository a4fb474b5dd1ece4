package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/observe"
)

// DefaultChunkSize is the number of texts synthesized into one temp file.
const DefaultChunkSize = 100

// Checkpoint records the progress of a long synthesis run.
type Checkpoint struct {
	SessionID      string   `json:"session_id"`
	OutputPath     string   `json:"output_path"`
	TotalTexts     int      `json:"total_texts"`
	CompletedCount int      `json:"completed_count"`
	TempFiles      []string `json:"temp_files"`
	CreatedAt      string   `json:"created_at"`
	SampleRate     int      `json:"sample_rate,omitempty"`
}

// LongResult summarises a finished run.
type LongResult struct {
	OutputPath string
	TotalTexts int
	Duration   float64 // seconds
	Resumed    bool
}

// RunError reports where an interrupted run can be resumed from.
type RunError struct {
	Checkpoint string
	Completed  int
	Total      int
	Err        error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("synthesis stopped after %d/%d texts (checkpoint %s): %v",
		e.Completed, e.Total, e.Checkpoint, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// LongProcessor synthesizes many texts into one WAV without gaps. Each
// chunk is saved as a temp file and recorded in a JSON checkpoint, so an
// interrupted run continues where it stopped.
type LongProcessor struct {
	synth      Synthesizer
	dir        string
	chunkSize  int
	params     Params
	onProgress func(current, total int)
	metrics    *observe.Metrics
	now        func() time.Time
}

// LongOption configures a LongProcessor.
type LongOption func(*LongProcessor)

// WithChunkSize sets how many texts go into each temp file.
func WithChunkSize(n int) LongOption {
	return func(lp *LongProcessor) {
		if n > 0 {
			lp.chunkSize = n
		}
	}
}

// WithParams sets the synthesis parameters for every text.
func WithParams(p Params) LongOption {
	return func(lp *LongProcessor) { lp.params = p }
}

// WithProgress registers a callback run before each text with its 1-based
// index and the total.
func WithProgress(fn func(current, total int)) LongOption {
	return func(lp *LongProcessor) { lp.onProgress = fn }
}

// WithMetrics records to m instead of the global instruments.
func WithMetrics(m *observe.Metrics) LongOption {
	return func(lp *LongProcessor) { lp.metrics = m }
}

// NewLongProcessor keeps checkpoints and temp files under checkpointDir,
// creating it if needed.
func NewLongProcessor(s Synthesizer, checkpointDir string, opts ...LongOption) (*LongProcessor, error) {
	if s == nil {
		return nil, ErrNotLoaded
	}
	if err := os.MkdirAll(checkpointDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	lp := &LongProcessor{
		synth:     s,
		dir:       checkpointDir,
		chunkSize: DefaultChunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(lp)
	}
	if lp.metrics == nil {
		lp.metrics = observe.DefaultMetrics()
	}
	return lp, nil
}

// pathHash identifies an output path in session ids.
func pathHash(outputPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(outputPath)).String()[:8]
}

// sessionID combines the start time with the output path hash.
func (lp *LongProcessor) sessionID(outputPath string) string {
	return lp.now().Format("20060102_150405") + "_" + pathHash(outputPath)
}

// Process synthesizes texts into outputPath. With resume set, a checkpoint
// left by an earlier run for the same output and text count is picked up.
func (lp *LongProcessor) Process(ctx context.Context, texts []string, outputPath string, resume bool) (*LongResult, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	total := len(texts)

	var cp *Checkpoint
	var cpPath string
	if resume {
		cp, cpPath = lp.findCheckpoint(outputPath, total)
	}
	resumed := cp != nil
	if cp == nil {
		cp = &Checkpoint{
			SessionID:  lp.sessionID(outputPath),
			OutputPath: outputPath,
			TotalTexts: total,
			TempFiles:  []string{},
			CreatedAt:  lp.now().Format(time.RFC3339),
		}
		cpPath = filepath.Join(lp.dir, cp.SessionID+".json")
	} else {
		logger.Infof("resuming %s from text %d of %d", cp.SessionID, cp.CompletedCount+1, total)
	}

	tempDir := filepath.Join(lp.dir, cp.SessionID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	for start := cp.CompletedCount; start < total; start += lp.chunkSize {
		end := min(start+lp.chunkSize, total)
		logger.Infof("synthesizing texts %d-%d of %d", start+1, end, total)

		sr, samples, err := lp.synthesizeChunk(ctx, texts[start:end], start, total)
		if err == nil && cp.SampleRate != 0 && sr != cp.SampleRate {
			err = fmt.Errorf("sample rate changed from %d to %d Hz", cp.SampleRate, sr)
		}
		if err != nil {
			return nil, &RunError{Checkpoint: cpPath, Completed: cp.CompletedCount, Total: total, Err: err}
		}

		tmp := filepath.Join(tempDir, fmt.Sprintf("chunk_%06d.wav", start))
		if err := audio.WriteWAV(tmp, audio.NewMono(samples, sr)); err != nil {
			return nil, &RunError{Checkpoint: cpPath, Completed: cp.CompletedCount, Total: total, Err: err}
		}

		cp.SampleRate = sr
		cp.CompletedCount = end
		cp.TempFiles = append(cp.TempFiles, tmp)
		if err := saveCheckpoint(cpPath, cp); err != nil {
			return nil, err
		}
		lp.metrics.SynthChunks.Add(ctx, 1)
	}

	duration, err := mergeWAVs(cp.TempFiles, outputPath)
	if err != nil {
		return nil, &RunError{Checkpoint: cpPath, Completed: cp.CompletedCount, Total: total, Err: err}
	}
	logger.Infof("wrote %s (%.1f min)", outputPath, duration/60)

	if err := os.RemoveAll(tempDir); err != nil {
		logger.Warnf("failed to remove %s: %v", tempDir, err)
	}
	if err := os.Remove(cpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("failed to remove checkpoint %s: %v", cpPath, err)
	}

	return &LongResult{OutputPath: outputPath, TotalTexts: total, Duration: duration, Resumed: resumed}, nil
}

// synthesizeChunk speaks texts back to back. offset is the index of the
// first text in the whole run.
func (lp *LongProcessor) synthesizeChunk(ctx context.Context, texts []string, offset, total int) (int, []float64, error) {
	var out []float64
	sampleRate := 0
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		if lp.onProgress != nil {
			lp.onProgress(offset+i+1, total)
		}
		sr, samples, err := lp.synth.Synthesize(ctx, text, lp.params)
		if err != nil {
			return 0, nil, fmt.Errorf("text %d: %w", offset+i+1, err)
		}
		if sampleRate != 0 && sr != sampleRate {
			return 0, nil, fmt.Errorf("text %d: sample rate %d Hz differs from %d Hz", offset+i+1, sr, sampleRate)
		}
		sampleRate = sr
		out = append(out, samples...)
		logger.Debugf("[%d/%d] %s", offset+i+1, total, preview(text))
	}
	return sampleRate, out, nil
}

// findCheckpoint returns a usable checkpoint for outputPath, if any. A
// checkpoint whose temp files have gone missing is ignored.
func (lp *LongProcessor) findCheckpoint(outputPath string, total int) (*Checkpoint, string) {
	matches, _ := filepath.Glob(filepath.Join(lp.dir, "*_"+pathHash(outputPath)+".json"))
	for _, path := range matches {
		cp, err := loadCheckpoint(path)
		if err != nil {
			logger.Warnf("ignoring unreadable checkpoint %s: %v", path, err)
			continue
		}
		if cp.OutputPath != outputPath || cp.TotalTexts != total {
			continue
		}
		if missing := firstMissing(cp.TempFiles); missing != "" {
			logger.Warnf("checkpoint %s is missing %s, starting over", path, missing)
			continue
		}
		return cp, path
	}
	return nil, ""
}

func firstMissing(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return p
		}
	}
	return ""
}

func loadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func saveCheckpoint(path string, cp *Checkpoint) error {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cp); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// mergeWAVs concatenates mono WAV files into outputPath and returns the
// merged duration in seconds.
func mergeWAVs(paths []string, outputPath string) (float64, error) {
	var merged []float64
	sampleRate := 0
	for _, p := range paths {
		buf, _, err := audio.ReadWAV(p)
		if err != nil {
			return 0, err
		}
		if sampleRate == 0 {
			sampleRate = buf.SampleRate
		}
		merged = append(merged, buf.Mono()...)
	}
	if sampleRate == 0 {
		return 0, errors.New("nothing to merge")
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}
	out := audio.NewMono(merged, sampleRate)
	if err := audio.WriteWAV(outputPath, out); err != nil {
		return 0, err
	}
	return out.Duration(), nil
}

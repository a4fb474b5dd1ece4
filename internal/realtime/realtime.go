// Package realtime estimates vowels from a live audio stream when there is
// no text to drive the mouth.
//
// A producer pushes chunks into a bounded queue; one consumer goroutine
// keeps a rolling analysis buffer, reports per-chunk levels and detects a
// vowel on the newest frame, either from formant peaks or from the
// dominant frequency. A full queue drops the chunk instead of blocking the
// producer.
package realtime

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/dsp"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/observe"
)

// ErrNotRunning is returned by Stop when the processor was never started.
var ErrNotRunning = errors.New("realtime: processor not running")

// Processor defaults
const (
	DefaultSampleRate = 22050
	DefaultFrameSize  = 1024
	DefaultQueueSize  = 100
	DefaultResultSize = 50

	stopTimeout   = 2 * time.Second
	latestTimeout = 10 * time.Millisecond
)

// Detection configures vowel detection.
type Detection struct {
	Enabled             bool    `yaml:"enabled" toml:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" toml:"confidence_threshold"`
	SmoothingWindow     int     `yaml:"smoothing_window" toml:"smoothing_window"`
	FormantAnalysis     bool    `yaml:"formant_analysis" toml:"formant_analysis"`
}

// Config holds processor construction parameters. Zero values select the
// defaults. A nil Detection selects the default detection settings; a
// non-nil one is used as given.
type Config struct {
	SampleRate int       `yaml:"sample_rate" toml:"sample_rate"`
	FrameSize  int       `yaml:"frame_size" toml:"frame_size"`
	QueueSize  int       `yaml:"queue_size" toml:"queue_size"`
	ResultSize int       `yaml:"result_size" toml:"result_size"`
	BufferSize int       `yaml:"buffer_size" toml:"buffer_size"` // samples; 0 means two seconds
	Detection  *Detection `yaml:"detection" toml:"detection"`
}

// DefaultConfig returns the processor defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		FrameSize:  DefaultFrameSize,
		QueueSize:  DefaultQueueSize,
		ResultSize: DefaultResultSize,
		BufferSize: 2 * DefaultSampleRate,
		Detection:  defaultDetection(),
	}
}

func defaultDetection() *Detection {
	return &Detection{
		Enabled:             true,
		ConfidenceThreshold: 0.6,
		SmoothingWindow:     3,
		FormantAnalysis:     true,
	}
}

// FrameInfo describes one pushed chunk.
type FrameInfo struct {
	Timestamp    float64 // seconds
	SampleRate   int
	Size         int
	RMS          float64
	DominantFreq float64 // Hz, 0 when the chunk is too short
}

// Result is one detected vowel.
type Result struct {
	Timestamp  float64 `json:"timestamp"`
	Vowel      string  `json:"vowel"`
	Confidence float64 `json:"confidence"`
	F1         float64 `json:"formant_f1"`
	F2         float64 `json:"formant_f2"`
	Intensity  float64 `json:"intensity"`
}

// Stats is a snapshot of the processor state.
type Stats struct {
	Running          bool   `json:"is_processing"`
	Session          string `json:"session"`
	QueueSize        int    `json:"audio_queue_size"`
	ResultQueueSize  int    `json:"result_queue_size"`
	BufferLength     int    `json:"buffer_length"`
	SampleRate       int    `json:"sample_rate"`
	FrameSize        int    `json:"frame_size"`
	DetectionEnabled bool   `json:"vowel_detection_enabled"`
	FormantAnalysis  bool   `json:"formant_analysis"`
}

// Update is a partial settings change. Nil fields are left alone.
type Update struct {
	Enabled             *bool
	ConfidenceThreshold *float64
	SmoothingWindow     *int
	FormantAnalysis     *bool
	FrameSize           *int
}

type chunk struct {
	samples   []float64
	timestamp float64
}

// Processor is a streaming vowel estimator. All methods are safe for
// concurrent use.
type Processor struct {
	sampleRate int
	queue      chan chunk
	results    chan Result
	metrics    *observe.Metrics

	mu         sync.Mutex
	frameSize  int
	bufferSize int
	detection  Detection
	onVowel    func(Result)
	onFrame    func(FrameInfo)
	running    bool
	session    *session
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics records to m instead of the global instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// New creates a stopped processor.
func New(cfg Config, opts ...Option) *Processor {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ResultSize <= 0 {
		cfg.ResultSize = def.ResultSize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 2 * cfg.SampleRate
	}
	detection := *def.Detection
	if cfg.Detection != nil {
		detection = *cfg.Detection
		detection.ConfidenceThreshold = max(0, min(1, detection.ConfidenceThreshold))
		detection.SmoothingWindow = max(1, detection.SmoothingWindow)
	}

	p := &Processor{
		sampleRate: cfg.SampleRate,
		bufferSize: max(cfg.BufferSize, cfg.FrameSize),
		queue:      make(chan chunk, cfg.QueueSize),
		results:    make(chan Result, cfg.ResultSize),
		frameSize:  cfg.FrameSize,
		detection:  detection,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	logger.Debugf("realtime processor: %d Hz, frame %d, queue %d", p.sampleRate, p.frameSize, cfg.QueueSize)
	return p
}

// SetVowelCallback registers fn to run on the consumer goroutine for every
// detected vowel.
func (p *Processor) SetVowelCallback(fn func(Result)) {
	p.mu.Lock()
	p.onVowel = fn
	p.mu.Unlock()
}

// SetFrameCallback registers fn to run on the consumer goroutine for every
// processed chunk.
func (p *Processor) SetFrameCallback(fn func(FrameInfo)) {
	p.mu.Lock()
	p.onFrame = fn
	p.mu.Unlock()
}

// Start launches the consumer under a new session id. The consumer also
// stops when ctx is cancelled. Starting a running processor does nothing.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		logger.Warnf("realtime processor already running (session %s)", p.session.id)
		return
	}
	s := &session{
		id:       uuid.NewString(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		analyzer: newAnalyzer(),
	}
	p.session = s
	p.running = true
	go p.consume(ctx, s)
	logger.Infof("realtime processing started (session %s)", s.id)
}

// Stop signals the consumer, waits up to two seconds for it to finish and
// discards anything left in the queues.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	s := p.session
	close(s.stop)
	p.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		logger.Warnf("realtime consumer did not stop within %s", stopTimeout)
	}

	chunks, results := p.drain()
	if chunks > 0 || results > 0 {
		logger.Debugf("discarded %d queued chunks and %d results", chunks, results)
	}
	logger.Infof("realtime processing stopped (session %s)", s.id)
	return nil
}

// drain empties both queues without blocking.
func (p *Processor) drain() (chunks, results int) {
	for {
		select {
		case <-p.queue:
			chunks++
		default:
			p.metrics.RealtimeQueueDepth.Add(context.Background(), -int64(chunks))
			for {
				select {
				case <-p.results:
					results++
				default:
					return chunks, results
				}
			}
		}
	}
}

// Push queues a copy of samples stamped with the current time. It reports
// false when the queue is full.
func (p *Processor) Push(samples []float64) bool {
	return p.PushAt(samples, float64(time.Now().UnixNano())/1e9)
}

// PushAt queues a copy of samples with an explicit timestamp in seconds.
func (p *Processor) PushAt(samples []float64, timestamp float64) bool {
	return p.enqueue(chunk{samples: slices.Clone(samples), timestamp: timestamp})
}

// PushInt16 queues 16-bit PCM, scaled to [-1, 1).
func (p *Processor) PushInt16(samples []int16) bool {
	return p.enqueue(chunk{samples: audio.FromInt16(samples), timestamp: float64(time.Now().UnixNano()) / 1e9})
}

// PushInt32 queues 32-bit PCM, scaled to [-1, 1).
func (p *Processor) PushInt32(samples []int32) bool {
	return p.enqueue(chunk{samples: audio.FromInt32(samples), timestamp: float64(time.Now().UnixNano()) / 1e9})
}

func (p *Processor) enqueue(c chunk) bool {
	ctx := context.Background()
	select {
	case p.queue <- c:
		p.metrics.RealtimeQueueDepth.Add(ctx, 1)
		return true
	default:
		p.metrics.RealtimeDropped.Add(ctx, 1)
		logger.Warnf("realtime queue full, dropped %d samples", len(c.samples))
		return false
	}
}

// Results returns the channel detected vowels are delivered on. Results are
// dropped when nobody reads it.
func (p *Processor) Results() <-chan Result { return p.results }

// Latest returns the oldest undelivered result, waiting briefly for one.
func (p *Processor) Latest() (Result, bool) {
	select {
	case r := <-p.results:
		return r, true
	case <-time.After(latestTimeout):
		return Result{}, false
	}
}

// UpdateSettings applies u. Changes take effect from the next chunk.
func (p *Processor) UpdateSettings(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := &p.detection
	if u.Enabled != nil {
		d.Enabled = *u.Enabled
	}
	if u.ConfidenceThreshold != nil {
		d.ConfidenceThreshold = max(0, min(1, *u.ConfidenceThreshold))
	}
	if u.SmoothingWindow != nil {
		d.SmoothingWindow = max(1, *u.SmoothingWindow)
	}
	if u.FormantAnalysis != nil {
		d.FormantAnalysis = *u.FormantAnalysis
	}
	if u.FrameSize != nil && *u.FrameSize > 0 && *u.FrameSize != p.frameSize {
		p.frameSize = *u.FrameSize
		p.bufferSize = max(p.bufferSize, p.frameSize)
		logger.Infof("realtime frame size now %d", p.frameSize)
	}
	logger.Debugf("realtime detection settings: %+v", *d)
}

// Stats returns a snapshot of the processor state.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{
		Running:          p.running,
		QueueSize:        len(p.queue),
		ResultQueueSize:  len(p.results),
		SampleRate:       p.sampleRate,
		FrameSize:        p.frameSize,
		DetectionEnabled: p.detection.Enabled,
		FormantAnalysis:  p.detection.FormantAnalysis,
	}
	if s := p.session; s != nil {
		st.Session = s.id
		st.BufferLength = int(s.bufferLen.Load())
	}
	return st
}

// snapshot is the configuration one chunk is processed with.
type snapshot struct {
	frameSize  int
	bufferSize int
	detection  Detection
	onVowel    func(Result)
	onFrame    func(FrameInfo)
}

func (p *Processor) snapshot() snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return snapshot{
		frameSize:  p.frameSize,
		bufferSize: p.bufferSize,
		detection:  p.detection,
		onVowel:    p.onVowel,
		onFrame:    p.onFrame,
	}
}

// consume processes chunks in arrival order until stopped. A cancelled ctx
// leaves the processor stopped.
func (p *Processor) consume(ctx context.Context, s *session) {
	defer close(s.done)
	defer func() {
		p.mu.Lock()
		if p.session == s && p.running {
			p.running = false
			logger.Infof("realtime processing stopped (session %s)", s.id)
		}
		p.mu.Unlock()
	}()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			logger.Debugf("realtime consumer cancelled: %v", ctx.Err())
			return
		case c := <-p.queue:
			p.metrics.RealtimeQueueDepth.Add(ctx, -1)
			p.process(ctx, s, c)
		}
	}
}

// process handles one chunk. A panic is logged and the chunk skipped.
func (p *Processor) process(ctx context.Context, s *session, c chunk) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("realtime chunk skipped: %v", r)
		}
	}()
	snap := p.snapshot()
	p.metrics.RealtimeFrames.Add(ctx, 1)

	s.append(c.samples, snap.bufferSize)
	info := FrameInfo{
		Timestamp:    c.timestamp,
		SampleRate:   p.sampleRate,
		Size:         len(c.samples),
		RMS:          dsp.RMS(c.samples),
		DominantFreq: s.analyzer.dominantFrequency(c.samples, p.sampleRate),
	}
	if snap.onFrame != nil {
		snap.onFrame(info)
	}

	if !snap.detection.Enabled || len(s.buffer) < snap.frameSize {
		return
	}
	frame := s.buffer[len(s.buffer)-snap.frameSize:]
	r, ok := s.analyzer.detect(frame, info, snap.detection)
	if !ok {
		return
	}
	r.Vowel = s.smooth.apply(r.Vowel, snap.detection.SmoothingWindow)

	select {
	case p.results <- r:
	default:
	}
	if snap.onVowel != nil {
		snap.onVowel(r)
	}
}

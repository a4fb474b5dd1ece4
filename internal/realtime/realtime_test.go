package realtime

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/linuxmatters/mouthpiece/internal/observe"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sumValue returns the total of an int64 sum instrument, or 0 if unrecorded.
func sumValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data type = %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

// binTone sums sines centred exactly on FFT bins of an n-point frame.
func binTone(n, sampleRate int, bins []int, amps []float64) []float64 {
	out := make([]float64, n)
	for j, k := range bins {
		f := float64(k) * float64(sampleRate) / float64(n)
		for i := range out {
			out[i] += amps[j] * math.Sin(2*math.Pi*f*float64(i)/float64(sampleRate))
		}
	}
	return out
}

func TestRangeScore(t *testing.T) {
	tests := []struct {
		v, lo, hi float64
		want      float64
	}{
		{750, 600, 900, 1},
		{600, 600, 900, 0},
		{675, 600, 900, 0.5},
		{500, 600, 900, 1 - 100.0/600},
		{1200, 600, 900, 0.5},
		{2000, 600, 900, 0},
	}
	for _, tt := range tests {
		if got := rangeScore(tt.v, tt.lo, tt.hi); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("rangeScore(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestClassifyFormants(t *testing.T) {
	tests := []struct {
		f1, f2    float64
		wantVowel string
		wantScore float64
	}{
		{750, 1200, "a", 1},
		{300, 2400, "i", 1},
		{300, 900, "u", 1},
		{500, 1700, "e", 1},
		{500, 900, "o", 1},
		{5000, 9000, "a", 0}, // nothing matches
	}
	for _, tt := range tests {
		vowel, score := classifyFormants(tt.f1, tt.f2)
		if vowel != tt.wantVowel || math.Abs(score-tt.wantScore) > 1e-9 {
			t.Errorf("classifyFormants(%v, %v) = %s %v, want %s %v", tt.f1, tt.f2, vowel, score, tt.wantVowel, tt.wantScore)
		}
	}
}

func TestSimpleDetect(t *testing.T) {
	tests := []struct {
		name      string
		rms, freq float64
		vowel     string
		intensity float64
	}{
		{"quiet", 0.005, 1200, "sil", 0},
		{"low", 0.1, 300, "u", 0.3},
		{"low mid", 0.1, 700, "o", 0.3},
		{"mid", 0.1, 1200, "a", 0.3},
		{"high mid", 0.1, 1800, "e", 0.3},
		{"high", 0.5, 2500, "i", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := simpleDetect(FrameInfo{Timestamp: 1.5, RMS: tt.rms, DominantFreq: tt.freq})
			if r.Vowel != tt.vowel || math.Abs(r.Intensity-tt.intensity) > 1e-9 || r.Timestamp != 1.5 {
				t.Errorf("got %+v, want %s at %v", r, tt.vowel, tt.intensity)
			}
			wantConf := simpleConfidence
			if tt.vowel == "sil" {
				wantConf = silenceConfidence
			}
			if r.Confidence != wantConf {
				t.Errorf("confidence = %v, want %v", r.Confidence, wantConf)
			}
		})
	}
}

func TestDominantFrequency(t *testing.T) {
	a := newAnalyzer()
	const sr, n = 22050, 1024
	got := a.dominantFrequency(binTone(n, sr, []int{20}, []float64{0.5}), sr)
	if want := 20.0 * sr / n; math.Abs(got-want) > 1e-9 {
		t.Errorf("dominant = %v, want %v", got, want)
	}
	if got := a.dominantFrequency(make([]float64, 32), sr); got != 0 {
		t.Errorf("short chunk dominant = %v, want 0", got)
	}
}

func TestFormants(t *testing.T) {
	a := newAnalyzer()
	const sr, n = 22050, 1024
	frame := binTone(n, sr, []int{35, 56}, []float64{0.5, 0.4})

	f := a.formants(frame, sr)
	if len(f) != 2 {
		t.Fatalf("formants = %v, want two peaks", f)
	}
	bin := float64(sr) / n
	if math.Abs(f[0]-35*bin) > 1e-9 || math.Abs(f[1]-56*bin) > 1e-9 {
		t.Errorf("formants = %v, want %v and %v", f, 35*bin, 56*bin)
	}

	if got := a.formants(make([]float64, n), sr); len(got) != 0 {
		t.Errorf("silent frame formants = %v, want none", got)
	}
}

func TestSmoother(t *testing.T) {
	var s smoother
	steps := []struct{ in, want string }{
		{"a", "a"},
		{"i", "i"}, // tie goes to the newest
		{"i", "i"},
		{"a", "i"},
		{"a", "a"},
	}
	for i, st := range steps {
		if got := s.apply(st.in, 3); got != st.want {
			t.Errorf("step %d: apply(%q) = %q, want %q", i, st.in, got, st.want)
		}
	}
	if got := s.apply("o", 1); got != "o" {
		t.Errorf("window 1 should pass through, got %q", got)
	}
}

func TestSessionAppend(t *testing.T) {
	var s session
	s.append([]float64{1, 2}, 3)
	s.append([]float64{3, 4, 5}, 3)
	if len(s.buffer) != 3 || s.buffer[0] != 3 || s.buffer[2] != 5 {
		t.Errorf("buffer = %v, want [3 4 5]", s.buffer)
	}
	if s.bufferLen.Load() != 3 {
		t.Errorf("bufferLen = %d", s.bufferLen.Load())
	}
}

func TestPushConversions(t *testing.T) {
	p := New(Config{})

	src := []float64{0.25, -0.25}
	if !p.PushAt(src, 2.0) {
		t.Fatal("PushAt rejected")
	}
	src[0] = 9
	c := <-p.queue
	if c.samples[0] != 0.25 || c.timestamp != 2.0 {
		t.Errorf("queued chunk = %+v, want an unaliased copy at 2.0", c)
	}

	p.PushInt16([]int16{-32768, 16384})
	c = <-p.queue
	if c.samples[0] != -1 || c.samples[1] != 0.5 {
		t.Errorf("int16 samples = %v", c.samples)
	}

	p.PushInt32([]int32{1 << 30})
	c = <-p.queue
	if c.samples[0] != 0.5 {
		t.Errorf("int32 samples = %v", c.samples)
	}
}

func TestQueueOverflow(t *testing.T) {
	m, reader := newTestMetrics(t)
	p := New(Config{QueueSize: 2}, WithMetrics(m))

	for i, want := range []bool{true, true, false} {
		if got := p.Push(make([]float64, 16)); got != want {
			t.Errorf("push %d = %v, want %v", i, got, want)
		}
	}
	if st := p.Stats(); st.QueueSize != 2 || st.Running {
		t.Errorf("stats = %+v", st)
	}
	if got := sumValue(t, reader, "mouthpiece.realtime.dropped"); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if got := sumValue(t, reader, "mouthpiece.realtime.queue_depth"); got != 2 {
		t.Errorf("queue depth = %d, want 2", got)
	}

	if err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop on idle processor: err = %v, want ErrNotRunning", err)
	}

	chunks, results := p.drain()
	if chunks != 2 || results != 0 {
		t.Errorf("drain = %d, %d; want 2, 0", chunks, results)
	}
	if got := sumValue(t, reader, "mouthpiece.realtime.queue_depth"); got != 0 {
		t.Errorf("queue depth after drain = %d, want 0", got)
	}
}

// runChunks pushes chunks through a running processor and returns what the
// callbacks saw once every chunk has been processed.
func runChunks(t *testing.T, p *Processor, chunks [][]float64) ([]FrameInfo, []Result) {
	t.Helper()
	frames := make(chan FrameInfo, len(chunks))
	vowels := make(chan Result, len(chunks))
	p.SetFrameCallback(func(f FrameInfo) { frames <- f })
	p.SetVowelCallback(func(r Result) { vowels <- r })

	p.Start(context.Background())
	for i, c := range chunks {
		if !p.PushAt(c, float64(i)) {
			t.Fatalf("push %d rejected", i)
		}
	}

	var gotFrames []FrameInfo
	for range chunks {
		select {
		case f := <-frames:
			gotFrames = append(gotFrames, f)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(vowels)
	var gotVowels []Result
	for r := range vowels {
		gotVowels = append(gotVowels, r)
	}
	return gotFrames, gotVowels
}

func TestProcessorFormantDetection(t *testing.T) {
	m, reader := newTestMetrics(t)
	cfg := DefaultConfig()
	cfg.Detection.SmoothingWindow = 1
	p := New(cfg, WithMetrics(m))

	tone := binTone(1024, DefaultSampleRate, []int{35, 56}, []float64{0.5, 0.4})
	frames, vowels := runChunks(t, p, [][]float64{tone[:512], tone[512:], tone})

	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	for i, f := range frames {
		if f.Timestamp != float64(i) {
			t.Errorf("frame %d timestamp %v, want arrival order", i, f.Timestamp)
		}
	}
	if frames[0].Size != 512 || frames[2].Size != 1024 || frames[2].RMS <= 0 {
		t.Errorf("frame info = %+v", frames)
	}

	// the first chunk leaves the buffer short of a frame
	if len(vowels) != 2 {
		t.Fatalf("got %d vowels %+v, want 2", len(vowels), vowels)
	}
	for _, r := range vowels {
		if r.Vowel != "a" || r.Confidence < cfg.Detection.ConfidenceThreshold {
			t.Errorf("result = %+v, want a confident a", r)
		}
	}
	if vowels[0].Timestamp != 1 || vowels[1].Timestamp != 2 {
		t.Errorf("vowel timestamps = %v, %v", vowels[0].Timestamp, vowels[1].Timestamp)
	}
	if got := sumValue(t, reader, "mouthpiece.realtime.frames"); got != 3 {
		t.Errorf("frames metric = %d, want 3", got)
	}
}

func TestProcessorSimpleDetection(t *testing.T) {
	m, _ := newTestMetrics(t)
	p := New(Config{}, WithMetrics(m))
	off := false
	one := 1
	p.UpdateSettings(Update{FormantAnalysis: &off, SmoothingWindow: &one})

	low := binTone(1024, DefaultSampleRate, []int{14}, []float64{0.5})
	_, vowels := runChunks(t, p, [][]float64{low, make([]float64, 1024)})
	if len(vowels) != 2 {
		t.Fatalf("got %d vowels, want 2", len(vowels))
	}
	if vowels[0].Vowel != "u" || vowels[1].Vowel != "sil" {
		t.Errorf("vowels = %s, %s; want u, sil", vowels[0].Vowel, vowels[1].Vowel)
	}
}

func TestProcessorDetectionDisabled(t *testing.T) {
	m, _ := newTestMetrics(t)
	p := New(Config{}, WithMetrics(m))
	off := false
	p.UpdateSettings(Update{Enabled: &off})

	frames, vowels := runChunks(t, p, [][]float64{make([]float64, 2048)})
	if len(frames) != 1 || len(vowels) != 0 {
		t.Errorf("got %d frames and %d vowels, want 1 and 0", len(frames), len(vowels))
	}
}

func TestProcessorLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)
	p := New(Config{}, WithMetrics(m))

	p.Start(context.Background())
	first := p.Stats()
	if !first.Running {
		t.Fatal("processor should be running")
	}
	if _, err := uuid.Parse(first.Session); err != nil {
		t.Errorf("session %q is not a UUID: %v", first.Session, err)
	}
	p.Start(context.Background())
	if p.Stats().Session != first.Session {
		t.Error("a second Start should keep the running session")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Stats().Running {
		t.Error("processor should be stopped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	second := p.Stats().Session
	if second == first.Session {
		t.Error("a new Start should get a new session")
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	cancel()
}

func TestProcessorRestartsAfterCancel(t *testing.T) {
	m, _ := newTestMetrics(t)
	p := New(Config{}, WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	first := p.Stats().Session
	cancel()

	deadline := time.Now().Add(stopTimeout)
	for p.Stats().Running {
		if time.Now().After(deadline) {
			t.Fatal("processor still running after its context was cancelled")
		}
		time.Sleep(time.Millisecond)
	}
	if err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop after cancel = %v, want ErrNotRunning", err)
	}

	p.Start(context.Background())
	st := p.Stats()
	if !st.Running || st.Session == first {
		t.Errorf("restart gave %+v, want a new running session", st)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewDetectionConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Detection
		enabled bool
		formant bool
		window  int
	}{
		{"nil uses defaults", nil, true, true, 3},
		{"disabled kept", &Detection{}, false, false, 1},
		{"clamped", &Detection{Enabled: true, ConfidenceThreshold: 3, SmoothingWindow: -2}, true, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{Detection: tt.cfg})
			st := p.Stats()
			if st.DetectionEnabled != tt.enabled || st.FormantAnalysis != tt.formant {
				t.Errorf("stats = %+v", st)
			}
			p.mu.Lock()
			d := p.detection
			p.mu.Unlock()
			if d.SmoothingWindow != tt.window || d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
				t.Errorf("detection = %+v", d)
			}
		})
	}
}

func TestUpdateSettings(t *testing.T) {
	p := New(Config{})
	threshold := 2.0
	window := 0
	frame := 2048
	p.UpdateSettings(Update{ConfidenceThreshold: &threshold, SmoothingWindow: &window, FrameSize: &frame})

	p.mu.Lock()
	d := p.detection
	p.mu.Unlock()
	if d.ConfidenceThreshold != 1 || d.SmoothingWindow != 1 {
		t.Errorf("detection = %+v, want clamped values", d)
	}
	if st := p.Stats(); st.FrameSize != 2048 || st.SampleRate != DefaultSampleRate {
		t.Errorf("stats = %+v", st)
	}
}

func TestLatest(t *testing.T) {
	p := New(Config{})
	if _, ok := p.Latest(); ok {
		t.Error("expected no result from an empty queue")
	}
	p.results <- Result{Vowel: "e"}
	if r, ok := p.Latest(); !ok || r.Vowel != "e" {
		t.Errorf("Latest = %+v, %v", r, ok)
	}
}

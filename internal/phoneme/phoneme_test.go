package phoneme

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

const eps = 1e-9

type fakePhonemizer struct {
	symbols []string
	err     error
}

func (f fakePhonemizer) Phonemes(string) ([]string, error) { return f.symbols, f.err }

func phonemesOf(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Phoneme
	}
	return out
}

func assertContiguous(t *testing.T, events []Event) {
	t.Helper()
	var want float64
	for i, ev := range events {
		if math.Abs(ev.Start-want) > eps {
			t.Errorf("event %d (%s) starts at %.4f, want %.4f", i, ev.Phoneme, ev.Start, want)
		}
		want = ev.End()
	}
}

func TestVowelFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a", "a"},
		{"ka", "a"},
		{"shu", "u"},
		{"N", "n"},
		{"Q", "sil"},
		{"pau", "sil"},
		{"ー", "a"},
		{"kya", "a"},
		{"fe", "e"}, // suffix match
		{"k", "sil"},
		{"ch", "sil"},
		{"cl", "sil"},
	}
	for _, tt := range tests {
		if got := VowelFor(tt.in); got != tt.want {
			t.Errorf("VowelFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		name    string
		phoneme string
		textLen int
		want    float64
	}{
		{"ten characters", "a", 10, 0.20},
		{"short text capped", "a", 2, 0.20 * 1.2},
		{"long text floored", "a", 40, 0.20 * 0.8},
		{"empty text", "k", 0, 0.08 * 1.2},
		{"unknown symbol", "xyz", 10, defaultDuration},
		{"in between", "o", 11, 0.21 * 10 / 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateDuration(tt.phoneme, tt.textLen); math.Abs(got-tt.want) > eps {
				t.Errorf("estimateDuration(%q, %d) = %v, want %v", tt.phoneme, tt.textLen, got, tt.want)
			}
		})
	}
}

func TestPhonemeIntensity(t *testing.T) {
	tests := []struct {
		phoneme string
		want    float64
	}{
		{"a", 0.9},
		{"e", 0.8},
		{"o", 0.85},
		{"i", 0.7},
		{"u", 0.65},
		{"pau", 0},
		{"sp", 0},
		{"N", 0.4},
		{"Q", 0.1},
		{"ka", 0.9 * 0.9},
		{"k", 0},   // multi-character rule does not apply; sil is 0
		{"ch", 0},  // sil base
		{"ku", 0.65 * 0.9},
	}
	for _, tt := range tests {
		got := phonemeIntensity(tt.phoneme, VowelFor(tt.phoneme))
		if math.Abs(got-tt.want) > eps {
			t.Errorf("intensity(%q) = %v, want %v", tt.phoneme, got, tt.want)
		}
	}
}

func TestIsEnding(t *testing.T) {
	symbols := []string{"k", "o", "N", "n", "i", "ch", "i", "w", "a", "pau"}
	tests := []struct {
		index int
		want  bool
	}{
		{0, false},
		{6, false},
		{7, true},  // within two of the end
		{8, true},  // only a pause follows
		{9, true},  // last
	}
	for _, tt := range tests {
		if got := isEnding(symbols, tt.index, 2); got != tt.want {
			t.Errorf("isEnding(%d) = %t, want %t", tt.index, got, tt.want)
		}
	}

	t.Run("pause inside window", func(t *testing.T) {
		if isEnding([]string{"a", "sp", "i", "u"}, 1, 2) {
			t.Error("pause within the tail window should not be an ending")
		}
	})
	t.Run("trailing pauses", func(t *testing.T) {
		if !isEnding([]string{"a", "i", "pau", "sil", "sp", "pau"}, 1, 2) {
			t.Error("phoneme followed only by pauses should be an ending")
		}
	})
}

func TestAnalyzePhonemizer(t *testing.T) {
	a := NewAnalyzer(fakePhonemizer{symbols: []string{"k a", " pau "}})
	events, source := a.Analyze("0123456789") // ten characters: factor 1

	if source != SourcePhonemizer {
		t.Fatalf("source = %s, want %s", source, SourcePhonemizer)
	}
	if got := phonemesOf(events); !slices.Equal(got, []string{"k", "a", "pau"}) {
		t.Fatalf("phonemes = %v", got)
	}

	k, vowel, pau := events[0], events[1], events[2]
	if k.IsEnding || k.Duration != 0.08 {
		t.Errorf("k = %+v, want unprotected 0.08s", k)
	}
	if !vowel.IsEnding || math.Abs(vowel.Duration-0.25) > eps || vowel.Intensity != 1 {
		t.Errorf("a = %+v, want ending 0.25s at full intensity", vowel)
	}
	if math.Abs(vowel.Start-0.08) > eps {
		t.Errorf("a starts at %v, want 0.08", vowel.Start)
	}
	if pau.IsEnding || math.Abs(pau.Start-0.33) > eps {
		t.Errorf("pau = %+v, want non-ending at 0.33s", pau)
	}
	if pau.WordPosition != 0 || pau.MoraPosition != 2 {
		t.Errorf("pau positions = mora %d word %d", pau.MoraPosition, pau.WordPosition)
	}
	assertContiguous(t, events)
}

func TestAnalyzeWordPositions(t *testing.T) {
	a := NewAnalyzer(fakePhonemizer{symbols: []string{"a", "pau", "i", "u", "sp", "e"}})
	events, _ := a.Analyze("aiue")

	wantMora := []int{0, 1, 0, 1, 2, 0}
	wantWord := []int{0, 0, 1, 1, 1, 2}
	for i, ev := range events {
		if ev.MoraPosition != wantMora[i] || ev.WordPosition != wantWord[i] {
			t.Errorf("event %d (%s): mora %d word %d, want %d %d",
				i, ev.Phoneme, ev.MoraPosition, ev.WordPosition, wantMora[i], wantWord[i])
		}
	}
}

func TestAnalyzeFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		phonemizer Phonemizer
		text       string
		wantSource Source
		wantCount  int
	}{
		{"no phonemizer", nil, "あいう", SourceKana, 3},
		{"phonemizer error", fakePhonemizer{err: errors.New("dictionary missing")}, "あい", SourceKana, 2},
		{"blank phonemizer output", fakePhonemizer{symbols: []string{" ", ""}}, "あ", SourceKana, 1},
		{"katakana", nil, "アイウ", SourceKana, 3},
		{"no kana", nil, "hello", SourcePlaceholder, 5},
		{"empty text", nil, "", SourcePlaceholder, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, source := NewAnalyzer(tt.phonemizer).Analyze(tt.text)
			if source != tt.wantSource {
				t.Errorf("source = %s, want %s", source, tt.wantSource)
			}
			if len(events) != tt.wantCount {
				t.Errorf("got %d events, want %d", len(events), tt.wantCount)
			}
			assertContiguous(t, events)
		})
	}
}

func TestKanaEvents(t *testing.T) {
	a := NewAnalyzer(nil)
	events, _ := a.Analyze("あい。")

	if got := phonemesOf(events); !slices.Equal(got, []string{"あ", "い", "pau"}) {
		t.Fatalf("phonemes = %v", got)
	}
	// Both kana fall inside the tail window and are lengthened to 0.25s.
	for _, ev := range events[:2] {
		if !ev.IsEnding || math.Abs(ev.Duration-0.25) > eps || math.Abs(ev.Intensity-0.84) > eps {
			t.Errorf("%s = %+v, want protected ending", ev.Phoneme, ev)
		}
	}
	pau := events[2]
	if pau.Vowel != VowelSilence || pau.Intensity != 0 || pau.Duration != pauseDuration {
		t.Errorf("pau = %+v", pau)
	}
	if math.Abs(pau.Start-0.5) > eps {
		t.Errorf("pau start = %v, want 0.5", pau.Start)
	}
	if pau.MoraPosition != 2 {
		t.Errorf("pau mora = %d, want character index 2", pau.MoraPosition)
	}
}

func TestPlaceholderEvents(t *testing.T) {
	a := NewAnalyzer(nil)
	a.SetEndingProtection(false, 0.25, 1.2)
	events, source := a.Analyze("xyz")

	if source != SourcePlaceholder {
		t.Fatalf("source = %s", source)
	}
	if got := VowelSequence(events); !slices.Equal(got, []string{"a", "i", "u", "e", "o"}) {
		t.Errorf("vowels = %v", got)
	}
	for j, ev := range events {
		if math.Abs(ev.Start-float64(j)*0.2) > eps || ev.Duration != 0.2 || ev.Intensity != 0.5 || ev.IsEnding {
			t.Errorf("placeholder %d = %+v", j, ev)
		}
	}
}

func TestSetEndingProtection(t *testing.T) {
	a := NewAnalyzer(fakePhonemizer{symbols: []string{"a", "i", "u", "e", "o"}})
	a.SetEndingProtection(true, 0.5, 2)
	a.SetTailWindow(0)

	events, _ := a.Analyze("0123456789")
	for i, ev := range events[:4] {
		if ev.IsEnding {
			t.Errorf("event %d marked as ending with a zero tail window", i)
		}
	}
	last := events[4]
	if !last.IsEnding || last.Duration != 0.5 || last.Intensity != 1 {
		t.Errorf("last = %+v, want 0.5s at full intensity", last)
	}

	got := a.EndingProtection()
	if !got.Enabled || got.MinDuration != 0.5 || got.IntensityBoost != 2 || got.TailWindow != 0 {
		t.Errorf("EndingProtection() = %+v", got)
	}
}

func TestOptimizeForTTS(t *testing.T) {
	a := NewAnalyzer(nil)
	events := []Event{
		{Phoneme: "a", Start: 5, Duration: 0.5, Vowel: "a"},
		{Phoneme: "i", Start: 5.5, Duration: 0.25, Vowel: "i"},
		{Phoneme: "u", Start: 5.75, Duration: 0.25, Vowel: "u", IsEnding: true},
	}

	t.Run("stretch", func(t *testing.T) {
		out := a.OptimizeForTTS(events, 2)
		want := []float64{1, 0.5, 0.5}
		for i, ev := range out {
			if math.Abs(ev.Duration-want[i]) > eps {
				t.Errorf("duration %d = %v, want %v", i, ev.Duration, want[i])
			}
		}
		if out[0].Start != 0 {
			t.Errorf("timeline should restart at zero, got %v", out[0].Start)
		}
		assertContiguous(t, out)
		if events[0].Start != 5 {
			t.Error("input events modified")
		}
	})

	t.Run("ending keeps minimum", func(t *testing.T) {
		out := a.OptimizeForTTS(events, 0.1)
		if math.Abs(out[2].Duration-0.2) > eps {
			t.Errorf("ending duration = %v, want 0.8 x 0.25", out[2].Duration)
		}
		if math.Abs(out[0].Duration-0.05) > eps {
			t.Errorf("first duration = %v, want 0.05", out[0].Duration)
		}
	})

	t.Run("unknown duration", func(t *testing.T) {
		out := a.OptimizeForTTS(events, 0)
		if &out[0] != &events[0] {
			t.Error("non-positive duration should return the input")
		}
	})
}

func TestStats(t *testing.T) {
	a := NewAnalyzer(nil)
	events, _ := a.Analyze("あいあ")
	s := a.Stats(events)

	if s.TotalPhonemes != 3 {
		t.Errorf("TotalPhonemes = %d", s.TotalPhonemes)
	}
	if !slices.Equal(s.UniqueVowels, []string{"a", "i"}) {
		t.Errorf("UniqueVowels = %v", s.UniqueVowels)
	}
	if s.VowelDistribution["a"].Count != 2 {
		t.Errorf("a count = %d, want 2", s.VowelDistribution["a"].Count)
	}
	if s.EndingCount != 3 || !s.ProtectionApplied {
		t.Errorf("EndingCount = %d, ProtectionApplied = %t", s.EndingCount, s.ProtectionApplied)
	}
	if math.Abs(s.TotalDuration-0.75) > eps || math.Abs(s.AverageDuration-0.25) > eps {
		t.Errorf("durations = %v total, %v average", s.TotalDuration, s.AverageDuration)
	}

	if got := a.Stats(nil); got.TotalPhonemes != 0 || got.VowelDistribution != nil {
		t.Errorf("Stats(nil) = %+v, want zero", got)
	}
}

func TestDebugString(t *testing.T) {
	a := NewAnalyzer(nil)
	events, _ := a.Analyze("あい")
	got := a.DebugString(events)
	for _, want := range []string{"phonemes: 2", "[ending]", "vowels: a i", "ending protection: on"} {
		if !strings.Contains(got, want) {
			t.Errorf("DebugString missing %q:\n%s", want, got)
		}
	}
	if a.DebugString(nil) != "no phoneme events" {
		t.Error("DebugString(nil) should report no events")
	}
}

func TestNormalizeSymbols(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"one string", []string{"k o N n i ch i w a"}, []string{"k", "o", "N", "n", "i", "ch", "i", "w", "a"}},
		{"already split", []string{"a", "i"}, []string{"a", "i"}},
		{"padding and empties", []string{" a ", "", "\ti\n"}, []string{"a", "i"}},
		{"nil", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSymbols(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("NormalizeSymbols(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

package processor

import (
	"math"
	"slices"
	"testing"
)

func TestLegacyHumPreset(t *testing.T) {
	tests := []struct {
		mainsHz   int
		wantFreqs []float64
	}{
		{50, []float64{50, 60, 100, 120, 150, 180, 200, 240}},
		{60, []float64{60, 50, 120, 100, 180, 150, 240, 200}},
	}
	wantGains := []float64{-20, -20, -12, -12, -9, -9, -6, -6}

	for _, tt := range tests {
		p := LegacyHumPreset(tt.mainsHz)
		if !p.Enabled || !p.HumRemoval || p.NoiseReduction || p.LoudnessNorm || p.HighpassFreq != 0 {
			t.Errorf("mains %d: unexpected switches %+v", tt.mainsHz, p)
		}
		if !slices.Equal(p.HumFrequencies, tt.wantFreqs) {
			t.Errorf("mains %d: frequencies = %v, want %v", tt.mainsHz, p.HumFrequencies, tt.wantFreqs)
		}
		if !slices.Equal(p.HumGains, wantGains) {
			t.Errorf("mains %d: gains = %v, want %v", tt.mainsHz, p.HumGains, wantGains)
		}
	}
}

func TestPresetByName(t *testing.T) {
	tests := []struct {
		name    string
		check   func(CleaningPreset) bool
		wantErr bool
	}{
		{"", func(p CleaningPreset) bool { return p.LoudnessNorm && p.HighpassFreq == 80 }, false},
		{"default", func(p CleaningPreset) bool { return p.TargetLUFS == -20 && p.TruePeak == -1 }, false},
		{"legacy-hum", func(p CleaningPreset) bool { return p.HumRemoval && len(p.HumFrequencies) == 8 }, false},
		{"legacy-noise", func(p CleaningPreset) bool { return p.NoiseReduction && p.NoiseFloor == -28 }, false},
		{"legacy-loudness", func(p CleaningPreset) bool { return p.LoudnessNorm && !p.NoiseReduction }, false},
		{"auto", nil, true},
		{"broadcast", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PresetByName(tt.name, 50)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(p) {
				t.Errorf("preset %q = %+v", tt.name, p)
			}
		})
	}
}

func TestStageEnabled(t *testing.T) {
	p := CleaningPreset{HighpassFreq: 80, NoiseReduction: true}
	tests := []struct {
		id   StageID
		want bool
	}{
		{StageHighpass, true},
		{StageHum, false},
		{StageNoise, true},
		{StageLoudness, false},
		{StageID("reverb"), false},
	}
	for _, tt := range tests {
		if got := p.stageEnabled(tt.id); got != tt.want {
			t.Errorf("stageEnabled(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}

	p.HighpassFreq = 0
	if p.stageEnabled(StageHighpass) {
		t.Error("highpass enabled with a zero cutoff")
	}
}

func TestDbConversion(t *testing.T) {
	tests := []struct {
		db     float64
		linear float64
	}{
		{0, 1},
		{-20, 0.1},
		{-40, 0.01},
		{6.0206, 2},
	}
	for _, tt := range tests {
		if got := DbToLinear(tt.db); math.Abs(got-tt.linear) > 1e-4 {
			t.Errorf("DbToLinear(%v) = %v, want %v", tt.db, got, tt.linear)
		}
		if got := LinearToDb(tt.linear); math.Abs(got-tt.db) > 1e-3 {
			t.Errorf("LinearToDb(%v) = %v, want %v", tt.linear, got, tt.db)
		}
	}
	if got := LinearToDb(0); got != -120 {
		t.Errorf("LinearToDb(0) = %v, want -120", got)
	}
}

func TestApplyHighpass(t *testing.T) {
	const sr = 24000
	rumble := CreateTestTone(30, 2, sr, 0.25)
	voice := CreateTestTone(1000, 2, sr, 0.25)

	p := &CleaningPreset{HighpassFreq: 80}

	outRumble, err := applyHighpass(rumble, sr, p)
	if err != nil {
		t.Fatalf("applyHighpass: %v", err)
	}
	if drop := toneLevelDB(rumble, 30, sr) - toneLevelDB(outRumble, 30, sr); drop < 40 {
		t.Errorf("30Hz attenuated by %.1f dB, want > 40", drop)
	}

	outVoice, err := applyHighpass(voice, sr, p)
	if err != nil {
		t.Fatalf("applyHighpass: %v", err)
	}
	if diff := math.Abs(toneLevelDB(voice, 1000, sr) - toneLevelDB(outVoice, 1000, sr)); diff > 0.5 {
		t.Errorf("1kHz changed by %.2f dB, want < 0.5", diff)
	}

	t.Run("cutoff above Nyquist", func(t *testing.T) {
		if _, err := applyHighpass(voice, sr, &CleaningPreset{HighpassFreq: 20000}); err != nil {
			t.Errorf("cutoff above Nyquist should be clamped, got %v", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := applyHighpass(make([]float64, 10), sr, p); err == nil {
			t.Error("expected an error for a 10-sample signal")
		}
	})
}

func TestRemoveHum(t *testing.T) {
	const sr = 16000
	hum := CreateTestTone(50, 3, sr, 0.1)
	voice := CreateTestTone(1000, 3, sr, 0.1)
	x := make([]float64, len(hum))
	for i := range x {
		x[i] = hum[i] + voice[i]
	}

	p := &CleaningPreset{
		HumRemoval:     true,
		HumFrequencies: []float64{50},
		HumGains:       []float64{-6},
	}
	out, err := removeHum(x, sr, p)
	if err != nil {
		t.Fatalf("removeHum: %v", err)
	}

	// The notch difference is applied at 10^(-6/20), so about half the hum
	// remains.
	want := Dbfs(0.1 * (1 - DbToLinear(-6)))
	if got := toneLevelDB(out, 50, sr); math.Abs(got-want) > 1.5 {
		t.Errorf("50Hz level = %.1f dBFS, want ~%.1f", got, want)
	}
	if diff := math.Abs(toneLevelDB(out, 1000, sr) - Dbfs(0.1)); diff > 0.2 {
		t.Errorf("1kHz changed by %.2f dB", diff)
	}
}

func TestRemoveHumSkipsPairs(t *testing.T) {
	x := CreateTestTone(60, 1, 8000, 0.1)
	tests := []struct {
		name  string
		freqs []float64
		gains []float64
	}{
		{"no pairs", nil, nil},
		{"shallow cut", []float64{60}, []float64{-3}},
		{"at Nyquist", []float64{4000}, []float64{-20}},
		{"non-positive", []float64{0}, []float64{-20}},
		{"unpaired frequency", []float64{60, 120}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &CleaningPreset{HumRemoval: true, HumFrequencies: tt.freqs, HumGains: tt.gains}
			out, err := removeHum(x, 8000, p)
			if err != nil {
				t.Fatalf("removeHum: %v", err)
			}
			if &out[0] != &x[0] {
				t.Error("signal was filtered, want it returned untouched")
			}
		})
	}
}

func TestNotchQ(t *testing.T) {
	tests := []struct {
		f    float64
		want float64
	}{
		{50, 35}, {100, 35}, {120, 30}, {200, 30}, {240, 25}, {400, 25}, {480, 20},
	}
	for _, tt := range tests {
		if got := notchQ(tt.f); got != tt.want {
			t.Errorf("notchQ(%v) = %v, want %v", tt.f, got, tt.want)
		}
	}
}

package processor

import (
	"math"
	"slices"
	"testing"
)

func TestDerivePresetDefaults(t *testing.T) {
	// A clean result should leave the default preset untouched.
	result := &AnalysisResult{
		ClipRatioPerChannel: []float64{0},
		TruePeak:            0.5,
		NoiseFloorDB:        ptr(-70),
		SNRDB:               ptr(40),
		Hum:                 []HumMeasurement{{50, 0.05}, {60, 0.02}},
	}
	got := DerivePreset(result, 24000)

	want := DefaultPreset()
	want.AutoGenerated = true
	if got.HighpassFreq != want.HighpassFreq || got.TruePeak != want.TruePeak ||
		got.TargetLUFS != want.TargetLUFS || got.NoiseFloor != want.NoiseFloor {
		t.Errorf("DerivePreset = %+v, want %+v", got, want)
	}
	if got.HumRemoval || got.NoiseReduction {
		t.Errorf("hum=%v noise=%v, want both disabled", got.HumRemoval, got.NoiseReduction)
	}
	if !got.Enabled || !got.LoudnessNorm || !got.AutoGenerated {
		t.Errorf("enabled=%v loudness=%v auto=%v, want all true", got.Enabled, got.LoudnessNorm, got.AutoGenerated)
	}
}

func TestDerivePresetNil(t *testing.T) {
	got := DerivePreset(nil, 24000)
	if !got.AutoGenerated || got.HighpassFreq != defaultHighpassFreq {
		t.Errorf("DerivePreset(nil) = %+v, want auto-generated defaults", got)
	}
}

func TestTuneHumRemoval(t *testing.T) {
	tests := []struct {
		name       string
		hum        []HumMeasurement
		sampleRate int
		wantFreqs  []float64
		wantGains  []float64
		wantHP     float64
	}{
		{
			name:       "below threshold",
			hum:        []HumMeasurement{{50, 0.15}, {60, 0.1}},
			sampleRate: 24000,
			wantHP:     80,
		},
		{
			name:       "mild 50Hz",
			hum:        []HumMeasurement{{50, 0.2}, {60, 0}},
			sampleRate: 24000,
			wantFreqs:  []float64{50, 100, 150, 200, 250, 300, 350, 400},
			wantGains:  []float64{-10, -10, -5, -5, -2, -2, 0, 0},
			wantHP:     80,
		},
		{
			name:       "moderate 60Hz raises highpass",
			hum:        []HumMeasurement{{60, 0.4}, {50, 0}},
			sampleRate: 24000,
			wantFreqs:  []float64{60, 120, 180, 240, 300, 360, 420, 480},
			wantGains:  []float64{-15, -15, -10, -10, -7, -7, -5, -5},
			wantHP:     100,
		},
		{
			name:       "strong",
			hum:        []HumMeasurement{{50, 0.6}},
			sampleRate: 24000,
			wantFreqs:  []float64{50, 100, 150, 200, 250, 300, 350, 400},
			wantGains:  []float64{-20, -20, -15, -15, -12, -12, -10, -10},
			wantHP:     100,
		},
		{
			name:       "severe both series, local first",
			hum:        []HumMeasurement{{60, 0.9}, {50, 0.9}},
			sampleRate: 24000,
			wantFreqs: []float64{
				60, 120, 180, 240, 300, 360, 420, 480,
				50, 100, 150, 200, 250, 300, 350, 400,
			},
			wantGains: []float64{
				-25, -25, -20, -20, -17, -17, -15, -15,
				-25, -25, -20, -20, -17, -17, -15, -15,
			},
			wantHP: 100,
		},
		{
			name:       "harmonics limited by Nyquist",
			hum:        []HumMeasurement{{60, 0.2}},
			sampleRate: 400,
			wantFreqs:  []float64{60, 120, 180},
			wantGains:  []float64{-10, -10, -5},
			wantHP:     80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &AnalysisResult{Hum: tt.hum}
			got := DerivePreset(result, tt.sampleRate)

			if got.HumRemoval != (len(tt.wantFreqs) > 0) {
				t.Errorf("HumRemoval = %v", got.HumRemoval)
			}
			if !slices.Equal(got.HumFrequencies, tt.wantFreqs) {
				t.Errorf("HumFrequencies = %v, want %v", got.HumFrequencies, tt.wantFreqs)
			}
			if !slices.Equal(got.HumGains, tt.wantGains) {
				t.Errorf("HumGains = %v, want %v", got.HumGains, tt.wantGains)
			}
			if got.HighpassFreq != tt.wantHP {
				t.Errorf("HighpassFreq = %v, want %v", got.HighpassFreq, tt.wantHP)
			}
		})
	}
}

func TestTuneNoiseReduction(t *testing.T) {
	tests := []struct {
		name       string
		snr        *float64
		noiseFloor *float64
		wantOn     bool
		wantFloor  float64
	}{
		{"unknown SNR", nil, nil, false, -28},
		{"good SNR", ptr(25), ptr(-50), false, -28},
		{"low SNR, quiet floor", ptr(18), ptr(-50), true, -28},
		{"low SNR, loud floor", ptr(10), ptr(-20), true, -23},
		{"low SNR, floor just above limit", ptr(10), ptr(-34), true, -35},
		{"low SNR, unknown floor", ptr(10), nil, true, -28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivePreset(&AnalysisResult{SNRDB: tt.snr, NoiseFloorDB: tt.noiseFloor}, 24000)
			if got.NoiseReduction != tt.wantOn {
				t.Errorf("NoiseReduction = %v, want %v", got.NoiseReduction, tt.wantOn)
			}
			if got.NoiseFloor != tt.wantFloor {
				t.Errorf("NoiseFloor = %v, want %v", got.NoiseFloor, tt.wantFloor)
			}
		})
	}
}

func TestTuneTruePeak(t *testing.T) {
	tests := []struct {
		name      string
		truePeak  float64
		clipRatio []float64
		want      float64
	}{
		{"quiet", 0.5, []float64{0}, -1.0},
		{"at threshold", 0.9, []float64{0}, -1.0},
		{"hot", 0.95, []float64{0}, -1.5},
		{"clipped second channel", 0.5, []float64{0, 0.002}, -2.0},
		{"hot and clipped", 1.0, []float64{0.01}, -2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivePreset(&AnalysisResult{TruePeak: tt.truePeak, ClipRatioPerChannel: tt.clipRatio}, 24000)
			if got.TruePeak != tt.want {
				t.Errorf("TruePeak = %v, want %v", got.TruePeak, tt.want)
			}
		})
	}
}

func TestSanitizePreset(t *testing.T) {
	p := CleaningPreset{
		HighpassFreq:   math.NaN(),
		NoiseFloor:     math.Inf(-1),
		TargetLUFS:     math.Inf(1),
		TruePeak:       math.NaN(),
		LRA:            7,
		HumRemoval:     true,
		HumFrequencies: []float64{50, 100, 150},
		HumGains:       []float64{-20, math.NaN()},
	}
	sanitizePreset(&p)

	if p.HighpassFreq != defaultHighpassFreq || p.NoiseFloor != defaultNoiseFloor ||
		p.TargetLUFS != defaultTargetLUFS || p.TruePeak != defaultTruePeak {
		t.Errorf("non-finite values not reset: %+v", p)
	}
	if p.LRA != 7 {
		t.Errorf("LRA = %v, want untouched 7", p.LRA)
	}
	if !slices.Equal(p.HumFrequencies, []float64{50, 100}) {
		t.Errorf("HumFrequencies = %v, want truncated to [50 100]", p.HumFrequencies)
	}
	if !slices.Equal(p.HumGains, []float64{-20, humGainMild}) {
		t.Errorf("HumGains = %v, want [-20 %v]", p.HumGains, humGainMild)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ val, lo, hi, want float64 }{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
	}
	for _, tt := range tests {
		if got := clamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%v, %v, %v) = %v, want %v", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

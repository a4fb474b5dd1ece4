package lipsync

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyframes(t *testing.T) {
	e := New(nil, DefaultConfig())
	data := &Data{
		TotalDuration: 0.3,
		Frames: []Frame{
			{Timestamp: 0, Vowel: "a", Intensity: 0.5, Duration: 0.1},
			{Timestamp: 0.1, Vowel: "i", Intensity: 1.0, Duration: 0.1, IsEnding: true},
		},
	}

	kf := e.Keyframes(data, 10)
	if kf == nil {
		t.Fatal("Keyframes returned nil")
	}
	if kf.TotalFrames != 3 || kf.FPS != 10 || !kf.EndingProtectionApplied {
		t.Errorf("header = %+v", kf)
	}

	tests := []struct {
		name   string
		got    []Keyframe
		values []float64
	}{
		{"a track", kf.VowelKeyframes["a"], []float64{0.5, 0, 0}},
		{"i track", kf.VowelKeyframes["i"], []float64{0, 1, 0}},
		{"n track", kf.VowelKeyframes["n"], []float64{0, 0, 0}},
		{"mouth open", kf.MouthParams.MouthOpen, []float64{0.5, 0.3, 0}},
		{"mouth form", kf.MouthParams.MouthForm, []float64{0, -1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != len(tt.values) {
				t.Fatalf("got %d keyframes, want %d", len(tt.got), len(tt.values))
			}
			for i, want := range tt.values {
				if tt.got[i].Frame != i {
					t.Errorf("keyframe %d has frame %d", i, tt.got[i].Frame)
				}
				if math.Abs(tt.got[i].Value-want) > 1e-9 {
					t.Errorf("keyframe %d = %v, want %v", i, tt.got[i].Value, want)
				}
			}
		})
	}
	if !kf.MouthParams.MouthOpen[1].IsEnding || kf.MouthParams.MouthOpen[0].IsEnding {
		t.Error("ending flag should follow the active frame")
	}

	t.Run("open scale", func(t *testing.T) {
		scale := 200
		e.Update(Update{MouthOpenScale: &scale})
		kf := e.Keyframes(data, 10)
		if got := kf.MouthParams.MouthOpen[0].Value; math.Abs(got-1.0) > 1e-9 {
			t.Errorf("scaled open = %v, want 1.0", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if e.Keyframes(&Data{TotalDuration: 1}, 30) != nil {
			t.Error("expected nil for data without frames")
		}
		if e.Keyframes(nil, 30) != nil {
			t.Error("expected nil for nil data")
		}
	})
}

func TestExport(t *testing.T) {
	e := New(nil, DefaultConfig())
	data, err := e.Analyze("こんにちは", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "nested", "hello.json")
	if err := e.Export(data, path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var out struct {
		Metadata struct {
			Text          string  `json:"text"`
			FrameCount    int     `json:"frame_count"`
			EngineVersion string  `json:"engine_version"`
			GeneratedAt   float64 `json:"generated_at"`
			Source        string  `json:"source"`
			Degraded      string  `json:"degraded"`
		} `json:"metadata"`
		VowelMapping map[string]MouthShape `json:"vowel_mapping"`
		Keyframes    Keyframes             `json:"keyframes"`
		RawFrames    []Frame               `json:"raw_vowel_frames"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("parse export: %v", err)
	}

	md := out.Metadata
	if md.Text != "こんにちは" || md.EngineVersion != EngineVersion || md.GeneratedAt <= 0 {
		t.Errorf("metadata = %+v", md)
	}
	if md.Source != string(SourceFallback) || md.Degraded == "" {
		t.Errorf("metadata should carry the fallback source: %+v", md)
	}
	if md.FrameCount != len(data.Frames) || len(out.RawFrames) != len(data.Frames) {
		t.Errorf("frame count %d, raw %d, want %d", md.FrameCount, len(out.RawFrames), len(data.Frames))
	}
	if out.Keyframes.FPS != DefaultFPS || out.Keyframes.TotalFrames != 15 {
		t.Errorf("keyframes fps %d frames %d, want %d and 15", out.Keyframes.FPS, out.Keyframes.TotalFrames, DefaultFPS)
	}
	if out.VowelMapping["o"].MouthForm != 70 {
		t.Errorf("vowel mapping not exported: %+v", out.VowelMapping)
	}

	if err := e.Export(nil, path); err == nil {
		t.Error("expected an error exporting nil data")
	}
}

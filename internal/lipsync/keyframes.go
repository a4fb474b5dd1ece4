package lipsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EngineVersion is written into exported timelines.
const EngineVersion = "2.3.0"

// DefaultFPS is the keyframe rate used when none is given.
const DefaultFPS = 30

// keyVowels are the vowels that get their own keyframe track.
var keyVowels = []string{"a", "i", "u", "e", "o", "n"}

// Keyframe is one sampled parameter value.
type Keyframe struct {
	Frame    int     `json:"frame"`
	Value    float64 `json:"value"`
	IsEnding bool    `json:"is_ending"`
}

// MouthParams holds the two mouth tracks.
type MouthParams struct {
	MouthOpen []Keyframe `json:"mouth_open"`
	MouthForm []Keyframe `json:"mouth_form"`
}

// Keyframes is a timeline sampled at a fixed rate.
type Keyframes struct {
	TotalDuration           float64               `json:"total_duration"`
	FPS                     int                   `json:"fps"`
	TotalFrames             int                   `json:"total_frames"`
	VowelKeyframes          map[string][]Keyframe `json:"vowel_keyframes"`
	MouthParams             MouthParams           `json:"mouth_params"`
	EndingProtectionApplied bool                  `json:"ending_protection_applied"`
}

// Keyframes samples data at fps. It returns nil when there are no frames.
func (e *Engine) Keyframes(data *Data, fps int) *Keyframes {
	if data == nil || len(data.Frames) == 0 {
		return nil
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	snap := e.snapshot()

	total := int(data.TotalDuration * float64(fps))
	kf := &Keyframes{
		TotalDuration:           data.TotalDuration,
		FPS:                     fps,
		TotalFrames:             total,
		VowelKeyframes:          make(map[string][]Keyframe, len(keyVowels)),
		EndingProtectionApplied: snap.protection.Enabled,
		MouthParams: MouthParams{
			MouthOpen: make([]Keyframe, 0, total),
			MouthForm: make([]Keyframe, 0, total),
		},
	}
	for _, v := range keyVowels {
		kf.VowelKeyframes[v] = make([]Keyframe, 0, total)
	}

	scale := float64(snap.settings.MouthOpenScale) / 100
	for n := range total {
		t := float64(n) / float64(fps)
		active := activeFrame(data.Frames, t)
		if active == nil {
			for _, v := range keyVowels {
				kf.VowelKeyframes[v] = append(kf.VowelKeyframes[v], Keyframe{Frame: n})
			}
			kf.MouthParams.MouthOpen = append(kf.MouthParams.MouthOpen, Keyframe{Frame: n})
			kf.MouthParams.MouthForm = append(kf.MouthParams.MouthForm, Keyframe{Frame: n})
			continue
		}

		for _, v := range keyVowels {
			value := 0.0
			if v == active.Vowel {
				value = active.Intensity
			}
			kf.VowelKeyframes[v] = append(kf.VowelKeyframes[v], Keyframe{Frame: n, Value: value, IsEnding: active.IsEnding})
		}

		var open, form float64
		if shape, ok := snap.vowels[active.Vowel]; ok {
			open = shape.MouthOpen * scale / 100 * active.Intensity
			form = shape.MouthForm / 100 * active.Intensity
		}
		kf.MouthParams.MouthOpen = append(kf.MouthParams.MouthOpen, Keyframe{Frame: n, Value: open, IsEnding: active.IsEnding})
		kf.MouthParams.MouthForm = append(kf.MouthParams.MouthForm, Keyframe{Frame: n, Value: form, IsEnding: active.IsEnding})
	}
	return kf
}

// activeFrame returns the first frame containing t.
func activeFrame(frames []Frame, t float64) *Frame {
	for i := range frames {
		if frames[i].Timestamp <= t && t < frames[i].End() {
			return &frames[i]
		}
	}
	return nil
}

// exportMetadata heads an exported timeline.
type exportMetadata struct {
	Text                    string  `json:"text"`
	TotalDuration           float64 `json:"total_duration"`
	FrameCount              int     `json:"frame_count"`
	GeneratedAt             float64 `json:"generated_at"` // unix seconds
	EngineVersion           string  `json:"engine_version"`
	EndingProtectionEnabled bool    `json:"ending_protection_enabled"`
	Source                  Source  `json:"source"`
	Degraded                string  `json:"degraded,omitempty"`
}

type exportFile struct {
	Metadata         exportMetadata   `json:"metadata"`
	Settings         Settings         `json:"settings"`
	EndingProtection EndingProtection `json:"ending_protection"`
	VowelMapping     VowelMapping     `json:"vowel_mapping"`
	Keyframes        *Keyframes       `json:"keyframes"`
	RawVowelFrames   []Frame          `json:"raw_vowel_frames"`
}

// Export writes data, its keyframes at DefaultFPS and the current engine
// configuration to path as JSON. Parent directories are created.
func (e *Engine) Export(data *Data, path string) error {
	if data == nil {
		return fmt.Errorf("export %s: no lip-sync data", path)
	}
	snap := e.snapshot()

	out := exportFile{
		Metadata: exportMetadata{
			Text:                    data.Text,
			TotalDuration:           data.TotalDuration,
			FrameCount:              len(data.Frames),
			GeneratedAt:             float64(time.Now().UnixNano()) / 1e9,
			EngineVersion:           EngineVersion,
			EndingProtectionEnabled: snap.protection.Enabled,
			Source:                  data.Source,
			Degraded:                data.Degraded,
		},
		Settings:         snap.settings,
		EndingProtection: snap.protection,
		VowelMapping:     snap.vowels,
		Keyframes:        e.Keyframes(data, DefaultFPS),
		RawVowelFrames:   data.Frames,
	}
	if out.RawVowelFrames == nil {
		out.RawVowelFrames = []Frame{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

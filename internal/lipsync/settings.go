package lipsync

import (
	"maps"

	"github.com/linuxmatters/mouthpiece/internal/logger"
)

// Settings tunes the engine and the renderer that consumes its output.
type Settings struct {
	Enabled            bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	Sensitivity        int     `json:"sensitivity" yaml:"sensitivity" toml:"sensitivity"`
	ResponseSpeed      int     `json:"response_speed" yaml:"response_speed" toml:"response_speed"`
	MouthOpenScale     int     `json:"mouth_open_scale" yaml:"mouth_open_scale" toml:"mouth_open_scale"`
	AutoOptimize       bool    `json:"auto_optimize" yaml:"auto_optimize" toml:"auto_optimize"`
	DelayCompensation  int     `json:"delay_compensation" yaml:"delay_compensation" toml:"delay_compensation"` // ms
	SmoothingFactor    int     `json:"smoothing_factor" yaml:"smoothing_factor" toml:"smoothing_factor"`
	PredictionEnabled  bool    `json:"prediction_enabled" yaml:"prediction_enabled" toml:"prediction_enabled"`
	ConsonantDetection bool    `json:"consonant_detection" yaml:"consonant_detection" toml:"consonant_detection"`
	VolumeThreshold    int     `json:"volume_threshold" yaml:"volume_threshold" toml:"volume_threshold"`
	QualityMode        string  `json:"quality_mode" yaml:"quality_mode" toml:"quality_mode"`
	AudioSyncEnabled   bool    `json:"audio_sync_enabled" yaml:"audio_sync_enabled" toml:"audio_sync_enabled"`
	CharDuration       float64 `json:"char_duration" yaml:"char_duration" toml:"char_duration"` // seconds per character
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		Sensitivity:        80,
		ResponseSpeed:      70,
		MouthOpenScale:     100,
		AutoOptimize:       true,
		DelayCompensation:  0,
		SmoothingFactor:    70,
		PredictionEnabled:  true,
		ConsonantDetection: true,
		VolumeThreshold:    5,
		QualityMode:        "balanced",
		AudioSyncEnabled:   true,
		CharDuration:       0.08,
	}
}

// EndingProtection strengthens the last meaningful frames of an utterance.
type EndingProtection struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	MinDuration    float64 `json:"min_duration" yaml:"min_duration" toml:"min_duration"`
	IntensityBoost float64 `json:"intensity_boost" yaml:"intensity_boost" toml:"intensity_boost"`
	DetectionRange int     `json:"detection_range" yaml:"detection_range" toml:"detection_range"`
}

// DefaultEndingProtection returns the engine's ending protection defaults.
func DefaultEndingProtection() EndingProtection {
	return EndingProtection{
		Enabled:        true,
		MinDuration:    0.15,
		IntensityBoost: 1.05,
		DetectionRange: 1,
	}
}

// MouthShape is the renderer pose for one vowel, in percent.
type MouthShape struct {
	MouthOpen float64 `json:"mouth_open" yaml:"mouth_open" toml:"mouth_open"`
	MouthForm float64 `json:"mouth_form" yaml:"mouth_form" toml:"mouth_form"`
}

// VowelMapping maps vowel classes to mouth shapes.
type VowelMapping map[string]MouthShape

// DefaultVowelMapping returns a fresh copy of the base mapping.
func DefaultVowelMapping() VowelMapping {
	return VowelMapping{
		"a":   {MouthOpen: 100, MouthForm: 0},
		"i":   {MouthOpen: 30, MouthForm: -100},
		"u":   {MouthOpen: 40, MouthForm: -70},
		"e":   {MouthOpen: 60, MouthForm: -30},
		"o":   {MouthOpen: 80, MouthForm: 70},
		"n":   {MouthOpen: 10, MouthForm: 0},
		"sil": {MouthOpen: 0, MouthForm: 0},
	}
}

// Params is the renderer-facing snapshot of the engine configuration.
type Params struct {
	VowelMapping     VowelMapping     `json:"vowel_mapping"`
	Settings         Settings         `json:"settings"`
	EndingProtection EndingProtection `json:"ending_protection"`
	Enabled          bool             `json:"enabled"`
}

// Update carries a partial settings change. Nil fields are left alone and
// every value is clamped to its valid range.
type Update struct {
	// Basic
	Enabled          *bool
	Sensitivity      *int
	ResponseSpeed    *int
	MouthOpenScale   *int
	AutoOptimize     *bool
	AudioSyncEnabled *bool
	CharDuration     *float64

	// Advanced
	DelayCompensation  *int
	SmoothingFactor    *int
	PredictionEnabled  *bool
	ConsonantDetection *bool
	VolumeThreshold    *int
	QualityMode        *string

	Protection *ProtectionUpdate

	// Vowels changes mouth shapes by vowel. Unknown vowels are ignored.
	Vowels map[string]ShapeUpdate
}

// ProtectionUpdate is a partial ending protection change.
type ProtectionUpdate struct {
	Enabled        *bool
	MinDuration    *float64
	IntensityBoost *float64
	DetectionRange *int
}

// ShapeUpdate is a partial mouth shape change.
type ShapeUpdate struct {
	MouthOpen *float64
	MouthForm *float64
}

func clamp[T int | float64](v, lo, hi T) T {
	return max(lo, min(hi, v))
}

func sanitizeSettings(s Settings) Settings {
	s.Sensitivity = clamp(s.Sensitivity, 0, 500)
	s.ResponseSpeed = clamp(s.ResponseSpeed, 0, 500)
	s.MouthOpenScale = clamp(s.MouthOpenScale, 0, 500)
	s.CharDuration = clamp(s.CharDuration, 0.05, 0.3)
	s.DelayCompensation = clamp(s.DelayCompensation, -1000, 1000)
	s.SmoothingFactor = clamp(s.SmoothingFactor, 0, 100)
	s.VolumeThreshold = clamp(s.VolumeThreshold, 0, 100)
	if s.QualityMode == "" {
		s.QualityMode = "balanced"
	}
	return s
}

func sanitizeProtection(p EndingProtection) EndingProtection {
	p.MinDuration = clamp(p.MinDuration, 0.1, 1.0)
	p.IntensityBoost = clamp(p.IntensityBoost, 1.0, 3.0)
	p.DetectionRange = clamp(p.DetectionRange, 1, 10)
	return p
}

func sanitizeShape(s MouthShape) MouthShape {
	s.MouthOpen = clamp(s.MouthOpen, 0, 500)
	s.MouthForm = clamp(s.MouthForm, -500, 500)
	return s
}

// Update applies u and notifies the change callback.
func (e *Engine) Update(u Update) {
	e.mu.Lock()
	s := e.settings
	setIf(&s.Enabled, u.Enabled)
	setIf(&s.Sensitivity, u.Sensitivity)
	setIf(&s.ResponseSpeed, u.ResponseSpeed)
	setIf(&s.MouthOpenScale, u.MouthOpenScale)
	setIf(&s.AutoOptimize, u.AutoOptimize)
	setIf(&s.AudioSyncEnabled, u.AudioSyncEnabled)
	setIf(&s.CharDuration, u.CharDuration)
	setIf(&s.DelayCompensation, u.DelayCompensation)
	setIf(&s.SmoothingFactor, u.SmoothingFactor)
	setIf(&s.PredictionEnabled, u.PredictionEnabled)
	setIf(&s.ConsonantDetection, u.ConsonantDetection)
	setIf(&s.VolumeThreshold, u.VolumeThreshold)
	setIf(&s.QualityMode, u.QualityMode)
	e.settings = sanitizeSettings(s)

	if pu := u.Protection; pu != nil {
		p := e.protection
		setIf(&p.Enabled, pu.Enabled)
		setIf(&p.MinDuration, pu.MinDuration)
		setIf(&p.IntensityBoost, pu.IntensityBoost)
		setIf(&p.DetectionRange, pu.DetectionRange)
		e.protection = sanitizeProtection(p)
	}

	for vowel, su := range u.Vowels {
		shape, ok := e.vowels[vowel]
		if !ok {
			continue
		}
		setIf(&shape.MouthOpen, su.MouthOpen)
		setIf(&shape.MouthForm, su.MouthForm)
		e.vowels[vowel] = sanitizeShape(shape)
	}

	onChange := e.onChange
	params := e.paramsLocked()
	e.mu.Unlock()

	if onChange != nil {
		onChange(params)
	}
	logger.Debugf("lip-sync settings updated")
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// SetOnChange registers a callback invoked with the new parameters after
// every Update.
func (e *Engine) SetOnChange(fn func(Params)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Params returns a copy of the renderer parameters.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paramsLocked()
}

func (e *Engine) paramsLocked() Params {
	return Params{
		VowelMapping:     maps.Clone(e.vowels),
		Settings:         e.settings,
		EndingProtection: e.protection,
		Enabled:          e.settings.Enabled,
	}
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// EndingProtection returns the current ending protection.
func (e *Engine) EndingProtection() EndingProtection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.protection
}

// VowelMapping returns a copy of the current vowel mapping.
func (e *Engine) VowelMapping() VowelMapping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.vowels)
}

// ResetVowelMapping restores the base vowel mapping.
func (e *Engine) ResetVowelMapping() {
	e.mu.Lock()
	e.vowels = DefaultVowelMapping()
	e.mu.Unlock()
}

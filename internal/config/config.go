// Package config loads mouthpiece settings from a TOML or YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/mouthpiece/internal/lipsync"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/realtime"
	"github.com/linuxmatters/mouthpiece/internal/synth"
	"github.com/linuxmatters/mouthpiece/internal/transcribe"
)

// Config is the complete mouthpiece configuration.
type Config struct {
	Log              LogConfig                `yaml:"log" toml:"log"`
	Metrics          MetricsConfig            `yaml:"metrics" toml:"metrics"`
	Cleaning         CleaningConfig           `yaml:"cleaning" toml:"cleaning"`
	LipSync          LipSyncConfig            `yaml:"lipsync" toml:"lipsync"`
	EndingProtection lipsync.EndingProtection `yaml:"ending_protection" toml:"ending_protection"`
	VowelMapping     lipsync.VowelMapping     `yaml:"vowel_mapping" toml:"vowel_mapping"`
	Realtime         realtime.Config          `yaml:"realtime" toml:"realtime"`
	Synth            SynthConfig              `yaml:"synth" toml:"synth"`
	Transcribe       TranscribeConfig         `yaml:"transcribe" toml:"transcribe"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSize    int    `yaml:"max_size" toml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAge     int    `yaml:"max_age" toml:"max_age"` // days
}

// Logger converts the section for logger.Init.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:      l.Level,
		File:       l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
	}
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr        string `yaml:"addr" toml:"addr"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// CleaningConfig selects the cleaning preset.
type CleaningConfig struct {
	// Preset is auto, default, legacy-hum, legacy-noise or legacy-loudness.
	Preset string `yaml:"preset" toml:"preset"`
	// MainsHz overrides timezone detection when 50 or 60.
	MainsHz int `yaml:"mains_hz" toml:"mains_hz"`
}

// LipSyncConfig holds engine settings plus the export and long-form knobs.
type LipSyncConfig struct {
	lipsync.Settings `yaml:",inline"`

	FPS    int     `yaml:"fps" toml:"fps"`
	MinGap float64 `yaml:"min_gap" toml:"min_gap"` // seconds of silence between long-form groups
}

// SynthConfig configures speech synthesis.
type SynthConfig struct {
	Voice         string `yaml:"voice" toml:"voice"`
	ChunkSize     int    `yaml:"chunk_size" toml:"chunk_size"`
	CheckpointDir string `yaml:"checkpoint_dir" toml:"checkpoint_dir"`
}

// TranscribeConfig configures the transcriber used by long-form lip-sync.
type TranscribeConfig struct {
	WhisperURL string   `yaml:"whisper_url" toml:"whisper_url"`
	Language   string   `yaml:"language" toml:"language"`
	Model      string   `yaml:"model" toml:"model"`
	BeamSize   int      `yaml:"beam_size" toml:"beam_size"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"`
}

// Duration wraps time.Duration for text-based formats.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string such as "90s".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		LipSync:          LipSyncConfig{Settings: lipsync.DefaultSettings()},
		EndingProtection: lipsync.DefaultEndingProtection(),
		VowelMapping:     lipsync.DefaultVowelMapping(),
		Realtime:         realtime.DefaultConfig(),
	}
	setDefaults(cfg)
	return cfg
}

// Load reads the file at path. TOML is used for .toml files and YAML for
// .yaml and .yml. ${VAR} references are expanded from the environment
// before parsing. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := os.Expand(string(data), os.Getenv)

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(expanded, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			logger.Warnf("config %s: unknown key %s", path, key)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults fills fields a file may have left zero.
func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAge == 0 {
		cfg.Log.MaxAge = 28
	}
	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = "mouthpiece"
	}
	if cfg.Cleaning.Preset == "" {
		cfg.Cleaning.Preset = "auto"
	}
	if cfg.LipSync.FPS == 0 {
		cfg.LipSync.FPS = 30
	}
	if cfg.LipSync.MinGap == 0 {
		cfg.LipSync.MinGap = lipsync.DefaultMinGap
	}
	if cfg.LipSync.QualityMode == "" {
		cfg.LipSync.QualityMode = "balanced"
	}
	if cfg.LipSync.CharDuration == 0 {
		cfg.LipSync.CharDuration = lipsync.DefaultSettings().CharDuration
	}
	if cfg.VowelMapping == nil {
		cfg.VowelMapping = lipsync.DefaultVowelMapping()
	}
	if cfg.Synth.Voice == "" {
		cfg.Synth.Voice = synth.DefaultVoice
	}
	if cfg.Synth.ChunkSize == 0 {
		cfg.Synth.ChunkSize = synth.DefaultChunkSize
	}
	if cfg.Synth.CheckpointDir == "" {
		cfg.Synth.CheckpointDir = defaultCheckpointDir()
	} else if strings.HasPrefix(cfg.Synth.CheckpointDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Synth.CheckpointDir = filepath.Join(home, cfg.Synth.CheckpointDir[2:])
		}
	}
	if cfg.Transcribe.Language == "" {
		cfg.Transcribe.Language = transcribe.DefaultLanguage
	}
	if cfg.Transcribe.BeamSize == 0 {
		cfg.Transcribe.BeamSize = transcribe.DefaultBeamSize
	}
	if cfg.Transcribe.Timeout.Duration == 0 {
		cfg.Transcribe.Timeout.Duration = 10 * time.Minute
	}
}

func defaultCheckpointDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mouthpiece", "checkpoints")
	}
	return filepath.Join(os.TempDir(), "mouthpiece-checkpoints")
}

// Engine returns the lip-sync engine configuration.
func (c *Config) Engine() lipsync.Config {
	return lipsync.Config{
		Settings:   c.LipSync.Settings,
		Protection: c.EndingProtection,
		Vowels:     c.VowelMapping,
	}
}

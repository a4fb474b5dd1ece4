package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWritesFile(t *testing.T) {
	t.Cleanup(func() {
		Z = zap.NewNop()
		L = Z.Sugar()
	})

	path := filepath.Join(t.TempDir(), "logs", "mouthpiece.log")
	if err := Init(Config{Level: "warn", File: path, Quiet: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Infof("suppressed %d", 1)
	Warnf("queue overflow, dropped %d chunks", 3)
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "suppressed") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "dropped 3 chunks") {
		t.Errorf("log output missing warning: %q", out)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Error("Init accepted an unknown level")
	}
}

func TestDefaultIsSilent(t *testing.T) {
	// The package default must be usable without Init.
	Errorf("no output expected %s", "here")
}

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentFile reads a transcript computed ahead of time. The file is JSON,
// or YAML when its extension is .yaml or .yml, and holds either an object
// with text and segments or a bare list of segments.
type SegmentFile struct {
	Path string
}

// Transcribe ignores wavPath and returns the file's contents.
func (s SegmentFile) Transcribe(_ context.Context, _ string) (Transcription, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Transcription{}, fmt.Errorf("read segments: %w", err)
	}

	var tr Transcription
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &tr)
	default:
		err = decodeJSON(data, &tr)
	}
	if err != nil {
		return Transcription{}, fmt.Errorf("parse segments %s: %w", s.Path, err)
	}

	for i, seg := range tr.Segments {
		if seg.End < seg.Start {
			return Transcription{}, fmt.Errorf("segment %d in %s ends before it starts (%.2f < %.2f)",
				i, s.Path, seg.End, seg.Start)
		}
		tr.Segments[i].Text = strings.TrimSpace(seg.Text)
	}
	if tr.Text == "" {
		tr.Text = joinText(tr.Segments)
	}
	return tr, nil
}

func decodeJSON(data []byte, tr *Transcription) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return json.Unmarshal(data, &tr.Segments)
	}
	return json.Unmarshal(data, tr)
}

func decodeYAML(data []byte, tr *Transcription) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		return node.Decode(&tr.Segments)
	}
	return node.Decode(tr)
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/cli"
	"github.com/linuxmatters/mouthpiece/internal/lipsync"
	"github.com/linuxmatters/mouthpiece/internal/phoneme"
	"github.com/linuxmatters/mouthpiece/internal/transcribe"
)

// LipSyncCmd builds a timeline for one utterance.
type LipSyncCmd struct {
	WAV  string `arg:"" name:"wav" help:"Synthesized speech" type:"existingfile"`
	Text string `short:"t" required:"" help:"Text that was spoken"`
	JSON string `type:"path" help:"Write the timeline and keyframes as JSON" placeholder:"FILE"`
	FPS  int    `help:"Keyframe rate; the configured rate when unset"`
	G2P  string `name:"g2p" enum:"kana,pinyin,none" default:"kana" help:"Phonemizer: kana, pinyin or none"`
}

func (c *LipSyncCmd) Run(a *app) error {
	buf, _, err := audio.ReadWAV(c.WAV)
	if err != nil {
		return err
	}
	engine := lipsync.New(newPhonemizer(c.G2P), a.cfg.Engine())
	data, err := engine.Analyze(c.Text, buf)
	if err != nil {
		return err
	}
	return report(engine, data, c.fps(a), c.JSON)
}

func (c *LipSyncCmd) fps(a *app) int {
	if c.FPS > 0 {
		return c.FPS
	}
	return a.cfg.LipSync.FPS
}

// LongFormCmd builds a timeline for a long recording using a transcript.
type LongFormCmd struct {
	WAV        string  `arg:"" name:"wav" help:"Long recording" type:"existingfile"`
	Text       string  `short:"t" help:"Script text for whole-clip analysis when no transcript is available"`
	WhisperURL string  `name:"whisper-url" help:"whisper.cpp server URL; the configured server when unset" placeholder:"URL"`
	Segments   string  `type:"existingfile" help:"Read transcript segments from a JSON or YAML file instead" placeholder:"FILE"`
	Gap        float64 `help:"Seconds of pause that split groups; the configured gap when unset"`
	JSON       string  `type:"path" help:"Write the timeline and keyframes as JSON" placeholder:"FILE"`
	G2P        string  `name:"g2p" enum:"kana,pinyin,none" default:"kana" help:"Phonemizer: kana, pinyin or none"`
}

func (c *LongFormCmd) Run(a *app) error {
	var opts []lipsync.Option
	tr, err := c.transcriber(a)
	if err != nil {
		return err
	}
	if tr != nil {
		opts = append(opts, lipsync.WithTranscriber(tr))
	}

	gap := c.Gap
	if gap <= 0 {
		gap = a.cfg.LipSync.MinGap
	}
	engine := lipsync.New(newPhonemizer(c.G2P), a.cfg.Engine(), opts...)
	data, err := engine.AnalyzeLong(a.ctx, c.WAV, c.Text, gap)
	if err != nil {
		return err
	}
	return report(engine, data, a.cfg.LipSync.FPS, c.JSON)
}

// transcriber returns nil when neither a segment file nor a server is set.
func (c *LongFormCmd) transcriber(a *app) (transcribe.Transcriber, error) {
	if c.Segments != "" {
		return transcribe.SegmentFile{Path: c.Segments}, nil
	}
	tc := a.cfg.Transcribe
	url := c.WhisperURL
	if url == "" {
		url = tc.WhisperURL
	}
	if url == "" {
		return nil, nil
	}
	return transcribe.NewWhisperClient(url,
		transcribe.WithLanguage(tc.Language),
		transcribe.WithModel(tc.Model),
		transcribe.WithBeamSize(tc.BeamSize),
		transcribe.WithHTTPClient(&http.Client{Timeout: tc.Timeout.Duration}),
	)
}

func newPhonemizer(name string) phoneme.Phonemizer {
	switch name {
	case "pinyin":
		return phoneme.NewPinyinPhonemizer()
	case "none":
		return nil
	}
	return phoneme.NewKanaPhonemizer()
}

// report prints a timeline summary and optionally exports it.
func report(engine *lipsync.Engine, data *lipsync.Data, fps int, jsonPath string) error {
	w := os.Stdout
	cli.PrintKeyValue(w, "Source", data.Source)
	if data.Degraded != "" {
		cli.PrintKeyValue(w, "Degraded", data.Degraded)
	}
	if data.WholeClip {
		cli.PrintKeyValue(w, "Whole clip", true)
	}
	cli.PrintKeyValue(w, "Duration", fmt.Sprintf("%.2fs", data.TotalDuration))
	cli.PrintKeyValue(w, "Frames", len(data.Frames))
	if kf := engine.Keyframes(data, fps); kf != nil {
		cli.PrintKeyValue(w, "Keyframes", fmt.Sprintf("%d @ %d fps", kf.TotalFrames, kf.FPS))
	}
	cli.PrintKeyValue(w, "Vowels", vowelString(data.Frames))

	if jsonPath == "" {
		return nil
	}
	if err := engine.Export(data, jsonPath); err != nil {
		return err
	}
	cli.PrintKeyValue(w, "Written", jsonPath)
	return nil
}

// vowelString renders the frame vowels, with "." for silence, capped for
// the terminal.
func vowelString(frames []lipsync.Frame) string {
	const maxShown = 80
	var b strings.Builder
	for i, f := range frames {
		if i == maxShown {
			fmt.Fprintf(&b, " … (+%d)", len(frames)-maxShown)
			break
		}
		if f.Vowel == phoneme.VowelSilence {
			b.WriteString(".")
			continue
		}
		b.WriteString(f.Vowel)
	}
	return b.String()
}

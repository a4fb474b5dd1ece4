package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/mouthpiece/internal/cli"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/processor"
	"github.com/linuxmatters/mouthpiece/internal/synth"
	"github.com/linuxmatters/mouthpiece/internal/ui"
)

// SpeakCmd synthesizes a script line by line into one WAV file.
type SpeakCmd struct {
	Text   string `short:"t" xor:"input" required:"" help:"Text to speak; one utterance per line"`
	File   string `short:"f" xor:"input" required:"" type:"existingfile" help:"Read the script from a file, one utterance per line"`
	Out    string `short:"o" required:"" type:"path" help:"Output WAV file"`
	Voice  string `help:"Neural voice name; the configured voice when unset"`
	Chunk  int    `help:"Utterances per checkpoint; the configured size when unset"`
	Clean  bool   `help:"Clean the merged audio with the configured preset"`
	Resume bool   `default:"true" negatable:"" help:"Resume from a matching checkpoint"`
}

type speakOutcome struct {
	result *synth.LongResult
	err    error
}

func (c *SpeakCmd) Run(a *app) error {
	texts, err := c.texts()
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return synth.ErrEmptyText
	}

	sc := a.cfg.Synth
	voice := c.Voice
	if voice == "" {
		voice = sc.Voice
	}
	chunk := c.Chunk
	if chunk <= 0 {
		chunk = sc.ChunkSize
	}

	model := ui.NewSpeakModel(c.Out, len(texts))
	progress := model.ProgressChan

	lp, err := synth.NewLongProcessor(synth.NewEdgeSynthesizer(voice), sc.CheckpointDir,
		synth.WithChunkSize(chunk),
		synth.WithParams(synth.Params{Voice: voice}),
		synth.WithProgress(func(current, total int) {
			select {
			case progress <- ui.SpeakProgressMsg{Current: current, Total: total}:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	done := make(chan speakOutcome, 1)
	go func() {
		res, err := lp.Process(ctx, texts, c.Out, c.Resume)
		select {
		case progress <- ui.SpeakCompleteMsg{Result: res, Error: err}:
		case <-ctx.Done():
		}
		done <- speakOutcome{res, err}
	}()

	p := tea.NewProgram(model)
	final, uiErr := p.Run()
	cancel()
	out := <-done
	if uiErr != nil {
		return fmt.Errorf("UI error: %w", uiErr)
	}
	if m, ok := final.(ui.SpeakModel); ok && !m.Done {
		logger.Warnf("synthesis interrupted")
	}

	if out.err != nil {
		var runErr *synth.RunError
		if errors.As(out.err, &runErr) && runErr.Checkpoint != "" {
			cli.PrintKeyValue(os.Stderr, "Checkpoint", runErr.Checkpoint)
			fmt.Fprintln(os.Stderr, "Run the same command again to resume.")
		}
		return out.err
	}

	if out.result.Resumed {
		cli.PrintKeyValue(os.Stdout, "Resumed", true)
	}
	if !c.Clean {
		return nil
	}
	return c.clean(a, out.result.OutputPath)
}

// clean rewrites path in place with the configured cleaning preset.
func (c *SpeakCmd) clean(a *app, path string) error {
	preset, err := resolvePreset(a.cfg.Cleaning.Preset, a.mainsHz)
	if err != nil {
		return err
	}
	result, err := processor.ProcessFile(path, processor.FileOptions{
		OutputPath: path,
		Preset:     preset,
		MainsHz:    a.mainsHz,
	})
	if err != nil {
		return err
	}
	if result.FailedOpen {
		cli.PrintError(fmt.Sprintf("cleaning failed, synthesized audio kept: %v", result.Err))
		return nil
	}
	cli.PrintKeyValue(os.Stdout, "Cleaned", processor.Summary(result.After))
	return nil
}

// texts returns the non-blank lines of the script.
func (c *SpeakCmd) texts() ([]string, error) {
	src := c.Text
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return nil, err
		}
		src = string(data)
	}

	var texts []string
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, sc.Err()
}

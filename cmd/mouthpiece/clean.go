package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/logging"
	"github.com/linuxmatters/mouthpiece/internal/mains"
	"github.com/linuxmatters/mouthpiece/internal/processor"
	"github.com/linuxmatters/mouthpiece/internal/ui"
)

// AnalyzeCmd prints the analysis of each file.
type AnalyzeCmd struct {
	Mains int      `help:"Mains frequency in Hz (50 or 60); detected from the timezone when unset"`
	Files []string `arg:"" name:"files" help:"WAV files to analyse" type:"existingfile"`
}

func (c *AnalyzeCmd) Run(a *app) error {
	analyzer := processor.NewAnalyzer(mainsFor(c.Mains, a))
	for _, path := range c.Files {
		buf, meta, err := audio.ReadWAV(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		result := analyzer.Analyze(buf)
		preset := processor.DerivePreset(result, buf.SampleRate)
		logging.DisplayAnalysisResults(os.Stdout, path, meta, result, &preset)
	}
	return nil
}

// CleanCmd runs the batch cleaning UI.
type CleanCmd struct {
	Preset string   `help:"Preset: auto, default, legacy-hum, legacy-noise or legacy-loudness" placeholder:"NAME"`
	Report bool     `help:"Write a cleaning report next to each output"`
	Mains  int      `help:"Mains frequency in Hz (50 or 60); detected from the timezone when unset"`
	Files  []string `arg:"" name:"files" help:"WAV files to clean" type:"existingfile"`
}

func (c *CleanCmd) Run(a *app) error {
	name := c.Preset
	if name == "" {
		name = a.cfg.Cleaning.Preset
	}
	mainsHz := mainsFor(c.Mains, a)
	preset, err := resolvePreset(name, mainsHz)
	if err != nil {
		return err
	}

	model := ui.NewModel(c.Files)
	progress := model.ProgressChan
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		for i, inputPath := range c.Files {
			start := time.Now()
			progress <- ui.FileStartMsg{FileIndex: i, FileName: inputPath}

			result, err := processor.ProcessFile(inputPath, processor.FileOptions{
				Preset:  preset,
				MainsHz: mainsHz,
				Progress: func(stage processor.StageID, index, total int) {
					progress <- ui.StageMsg{Stage: stage, Index: index, Total: total}
				},
			})
			if err != nil {
				logger.Errorf("clean %s: %v", inputPath, err)
				progress <- ui.FileCompleteMsg{FileIndex: i, Error: err}
				continue
			}

			if c.Report {
				data := logging.ReportData{StartTime: start, EndTime: time.Now(), Result: result}
				if err := logging.GenerateReport(data); err != nil {
					logger.Warnf("failed to write report for %s: %v", inputPath, err)
				}
			}
			progress <- ui.FileCompleteMsg{FileIndex: i, Result: result}
		}
		progress <- ui.AllCompleteMsg{}
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	m, ok := final.(ui.Model)
	if !ok || !m.Done {
		return fmt.Errorf("cleaning interrupted")
	}
	fmt.Println(m.View())
	if m.FailedFiles > 0 {
		return fmt.Errorf("%d of %d files had problems", m.FailedFiles, m.TotalFiles)
	}
	return nil
}

// resolvePreset returns nil for auto, meaning derive from analysis.
func resolvePreset(name string, mainsHz int) (*processor.CleaningPreset, error) {
	if name == "" || name == "auto" {
		return nil, nil
	}
	p, err := processor.PresetByName(name, mainsHz)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mainsFor prefers a valid per-command override to the configured value.
func mainsFor(flag int, a *app) int {
	if flag == mains.Hz50 || flag == mains.Hz60 {
		return flag
	}
	return a.mainsHz
}

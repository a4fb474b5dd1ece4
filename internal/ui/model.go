// Package ui provides the Bubbletea terminal user interface for batch
// cleaning and long-form synthesis.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/processor"
)

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusAnalyzing
	StatusCleaning
	StatusComplete
	StatusFailedOpen // cleaning failed; the original audio was written
	StatusError
)

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	InputPath  string
	OutputPath string
	Status     FileStatus

	// Stage tracking
	Stage      processor.StageID
	StageIndex int
	StageTotal int

	Progress    float64 // 0.0 to 1.0
	StartTime   time.Time
	ElapsedTime time.Duration

	// Completion results
	Result *processor.ProcessingResult
	Error  error
}

// Model is the Bubbletea model for the batch cleaning UI
type Model struct {
	// File queue
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int

	// Global state
	StartTime time.Time
	Done      bool

	// ProgressChan receives messages from the cleaning goroutine
	ProgressChan chan tea.Msg

	spinner spinner.Model

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a new UI model with the given input files
func NewModel(inputFiles []string) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1,
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
		spinner:      newSpinner(),
	}
}

func newSpinner() spinner.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)
	return sp
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForProgress(m.ProgressChan), m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case spinner.TickMsg:
		if m.Done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FileStartMsg:
		logger.Debugf("ui: file %d started: %s", msg.FileIndex, msg.FileName)
		if msg.FileIndex < 0 || msg.FileIndex >= len(m.Files) {
			return m, waitForProgress(m.ProgressChan)
		}
		m.CurrentIndex = msg.FileIndex
		m.Files[m.CurrentIndex].Status = StatusAnalyzing
		m.Files[m.CurrentIndex].StartTime = time.Now()
		return m, waitForProgress(m.ProgressChan)

	case StageMsg:
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex] = updateFileProgress(m.Files[m.CurrentIndex], msg)
		}
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		logger.Debugf("ui: file %d complete", msg.FileIndex)
		if msg.FileIndex >= 0 && msg.FileIndex < len(m.Files) {
			fp := &m.Files[msg.FileIndex]
			fp.Result = msg.Result
			fp.Error = msg.Error
			fp.Progress = 1
			fp.ElapsedTime = time.Since(fp.StartTime)
			switch {
			case msg.Error != nil:
				fp.Status = StatusError
				m.FailedFiles++
			case msg.Result != nil && msg.Result.FailedOpen:
				fp.Status = StatusFailedOpen
				fp.OutputPath = msg.Result.OutputPath
				m.FailedFiles++
			default:
				fp.Status = StatusComplete
				if msg.Result != nil {
					fp.OutputPath = msg.Result.OutputPath
				}
				m.CompletedFiles++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return fmt.Sprintf("Initializing...\nFiles: %d\n", len(m.Files))
	}
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

// updateFileProgress applies a stage update to the active file
func updateFileProgress(fp FileProgress, msg StageMsg) FileProgress {
	fp.Status = StatusCleaning
	fp.Stage = msg.Stage
	fp.StageIndex = msg.Index
	fp.StageTotal = msg.Total
	if msg.Total > 0 {
		fp.Progress = float64(msg.Index) / float64(msg.Total)
	}
	fp.ElapsedTime = time.Since(fp.StartTime)
	return fp
}

// waitForProgress creates a command that waits for progress messages
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}

package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/mouthpiece/internal/synth"
)

// SpeakProgressMsg reports the text about to be synthesized (1-based).
type SpeakProgressMsg struct {
	Current int
	Total   int
}

// SpeakCompleteMsg signals that long-form synthesis has finished.
type SpeakCompleteMsg struct {
	Result *synth.LongResult
	Error  error
}

// SpeakModel is the Bubbletea model for long-form synthesis
type SpeakModel struct {
	OutputPath string
	Current    int
	Total      int
	StartTime  time.Time

	Result *synth.LongResult
	Error  error
	Done   bool

	ProgressChan chan tea.Msg
	spinner      spinner.Model

	Width  int
	Height int
}

// NewSpeakModel creates a model for synthesizing total texts into outputPath.
func NewSpeakModel(outputPath string, total int) SpeakModel {
	return SpeakModel{
		OutputPath:   outputPath,
		Total:        total,
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
		spinner:      newSpinner(),
	}
}

// Init initializes the model
func (m SpeakModel) Init() tea.Cmd {
	return tea.Batch(waitForProgress(m.ProgressChan), m.spinner.Tick)
}

// Update handles messages and updates the model
func (m SpeakModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case SpeakProgressMsg:
		m.Current = msg.Current
		m.Total = msg.Total
		return m, waitForProgress(m.ProgressChan)

	case SpeakCompleteMsg:
		m.Result = msg.Result
		m.Error = msg.Error
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m SpeakModel) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(renderHeader("Synthesizing " + filepath.Base(m.OutputPath)))
	b.WriteString("\n\n")

	elapsed := time.Since(m.StartTime)
	switch {
	case m.Done && m.Error != nil:
		icon := lipgloss.NewStyle().Foreground(colorBad).Render("✗")
		fmt.Fprintf(&b, " %s %v\n", icon, m.Error)
	case m.Done && m.Result != nil:
		icon := lipgloss.NewStyle().Foreground(colorGood).Render("✓")
		fmt.Fprintf(&b, " %s %d texts → %s (%s audio)\n", icon, m.Result.TotalTexts,
			filepath.Base(m.Result.OutputPath), formatElapsed(time.Duration(m.Result.Duration*float64(time.Second))))
	case m.Current == 0:
		fmt.Fprintf(&b, "%s Connecting... [%s]\n", m.spinner.View(), formatElapsed(elapsed))
	default:
		progress := float64(m.Current-1) / float64(max(m.Total, 1))
		fmt.Fprintf(&b, "%s Text %d of %d\n", m.spinner.View(), m.Current, m.Total)
		b.WriteString(renderProgressBar(progress, 40))
		fmt.Fprintf(&b, " [%s]\n", formatElapsed(elapsed))
	}
	return b.String()
}

package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/mouthpiece/internal/processor"
)

var (
	colorAccent = lipgloss.Color("#7D56F4")
	colorGood   = lipgloss.Color("#00AA00")
	colorWarn   = lipgloss.Color("#FFA500")
	colorBad    = lipgloss.Color("#A40000")
	colorMuted  = lipgloss.Color("#888888")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(fmt.Sprintf("Cleaning %d file(s)", m.TotalFiles)))
	b.WriteString("\n\n")

	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file, m.spinner.View()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(renderOverallProgress(m))
	return b.String()
}

// renderHeader renders the application header
func renderHeader(subtitle string) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		Render("Mouthpiece 👄 - Speech Cleaner")

	sub := lipgloss.NewStyle().
		Foreground(colorMuted).
		Italic(true).
		Render(subtitle)

	return title + "\n" + sub
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress, spin string) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(colorGood).Render("✓")
		return fmt.Sprintf(" %s %s → %s\n   %s", icon, fileName, filepath.Base(file.OutputPath), resultLine(file.Result))

	case StatusFailedOpen:
		icon := lipgloss.NewStyle().Foreground(colorWarn).Render("!")
		return fmt.Sprintf(" %s %s → %s\n   Cleaning failed, original kept: %v", icon, fileName, filepath.Base(file.OutputPath), file.Result.Err)

	case StatusAnalyzing, StatusCleaning:
		return fmt.Sprintf(" %s %s\n%s", spin, fileName, renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(colorBad).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(colorMuted).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// resultLine summarises the level change of a cleaned file.
func resultLine(r *processor.ProcessingResult) string {
	if r == nil || r.Before == nil || r.After == nil {
		return ""
	}
	return fmt.Sprintf("Peak: %.1f → %.1f dBFS | RMS Δ %+.1f dB",
		processor.Dbfs(r.Before.TruePeak), processor.Dbfs(r.After.TruePeak), r.Effect.RMSChangeDB)
}

// renderFileDetails renders detailed progress for the active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1).
		Width(60)

	var content strings.Builder
	if file.Status == StatusAnalyzing {
		content.WriteString("Analysing audio\n")
	} else {
		fmt.Fprintf(&content, "Stage %d/%d: %s\n", file.StageIndex+1, file.StageTotal, stageName(file.Stage))
	}
	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n")
	fmt.Fprintf(&content, "⏱  Elapsed: %s", formatElapsed(time.Since(file.StartTime)))

	return box.Render(content.String())
}

// stageName returns a display name for a cleaning stage.
func stageName(id processor.StageID) string {
	switch id {
	case processor.StageHighpass:
		return "Highpass"
	case processor.StageHum:
		return "Hum removal"
	case processor.StageNoise:
		return "Noise reduction"
	case processor.StageLoudness:
		return "Loudness"
	}
	return string(id)
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = max(0, min(1, progress))
	filled := int(progress * float64(width))
	empty := width - filled

	filledStyle := lipgloss.NewStyle().Foreground(colorAccent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	bar := filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("━", empty))

	return fmt.Sprintf("%s %3d%%", bar, int(progress*100))
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1).
		Width(60)

	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		content = fmt.Sprintf("Processing file %d of %d (%d complete)",
			m.CurrentIndex+1, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall Progress: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}
	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorGood).
		Render("✨ Cleaning Complete!")
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file, ""))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d cleaned, %d with problems, in %s\n",
		m.CompletedFiles, m.FailedFiles, formatElapsed(time.Since(m.StartTime)))

	return b.String()
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

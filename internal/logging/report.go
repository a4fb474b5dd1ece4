package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/mouthpiece/internal/processor"
)

// writeSection writes a section header with title and dashed underline.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains everything needed for a cleaning report.
type ReportData struct {
	StartTime time.Time
	EndTime   time.Time
	Result    *processor.ProcessingResult
}

// ReportPath returns where GenerateReport writes the report for outputPath:
// line-clean.wav → line-clean.log
func ReportPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".log"
}

// GenerateReport writes the cleaning report alongside the output file.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - timing and outcome
// 3. Preset Applied
// 4. Measurements - Before/After table
// 5. Effect - level and crest change
// 6. Findings and tips for the cleaned audio
func GenerateReport(data ReportData) error {
	if data.Result == nil {
		return fmt.Errorf("no processing result to report")
	}
	logPath := ReportPath(data.Result.OutputPath)

	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	WriteReport(f, data)
	return nil
}

// WriteReport writes the report body to w.
func WriteReport(w io.Writer, data ReportData) {
	r := data.Result
	writeReportHeader(w, data)
	writeProcessingSummary(w, data)

	writeSection(w, "Preset Applied")
	writePreset(w, &r.Preset, "")
	fmt.Fprintln(w)

	writeSection(w, "Measurements")
	fmt.Fprint(w, measurementTable(r.Before, r.After).String())
	fmt.Fprintln(w)

	writeSection(w, "Effect")
	fmt.Fprintf(w, "RMS Change:     %s dB\n", formatMetricSigned(r.Effect.RMSChangeDB, 1))
	fmt.Fprintf(w, "Peak Change:    %s dB\n", formatMetricSigned(r.Effect.PeakChangeDB, 1))
	fmt.Fprintf(w, "Crest Change:   %s\n", formatMetricWithUnit(r.Effect.DynamicRangeChange, 2, "x"))
	fmt.Fprintln(w)

	if r.After != nil {
		writeSection(w, "Result")
		fmt.Fprintln(w, processor.Summary(r.After))
		fmt.Fprintln(w)
		if tips := GenerateTips(r.After); len(tips) > 0 {
			for _, tip := range tips {
				fmt.Fprintf(w, "• %s\n", wrapText(tip.Message, 70, "  "))
			}
			fmt.Fprintln(w)
		}
	}
}

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	r := data.Result
	fmt.Fprintln(w, "Mouthpiece Cleaning Report")
	fmt.Fprintln(w, "==========================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(r.InputPath))
	fmt.Fprintf(w, "Output: %s\n", filepath.Base(r.OutputPath))
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if r.Before != nil {
		fmt.Fprintf(w, "Duration: %s (%d Hz, %s)\n", formatDurationHMS(r.Before.Duration), r.Before.SampleRate, channelName(r.Before.Channels))
	}
	fmt.Fprintln(w)
}

// writeProcessingSummary outputs timing and whether cleaning failed open.
func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	total := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Total: %s", formatDuration(total))
	if r := data.Result; r.Before != nil && r.Before.Duration > 0 && total > 0 {
		audioDuration := time.Duration(r.Before.Duration * float64(time.Second))
		fmt.Fprintf(w, " (%.0fx real-time)", float64(audioDuration)/float64(total))
	}
	fmt.Fprintln(w)

	if data.Result.FailedOpen {
		fmt.Fprintf(w, "Cleaning FAILED, original audio written: %v\n", data.Result.Err)
	}
	fmt.Fprintln(w)
}

// measurementTable compares two analyses column by column.
func measurementTable(before, after *processor.AnalysisResult) *MetricTable {
	t := NewMetricTable()
	pair := func(fn func(*processor.AnalysisResult) string) []string {
		values := make([]string, 2)
		for i, r := range []*processor.AnalysisResult{before, after} {
			if r != nil {
				values[i] = fn(r)
			}
		}
		return values
	}

	t.AddRow("True Peak", pair(func(r *processor.AnalysisResult) string {
		return formatMetricPeak(r.TruePeak, 1)
	}), "dBFS", "")
	t.AddRow("RMS", pair(func(r *processor.AnalysisResult) string {
		return formatMetricDB(loudestRMSDB(r), 1)
	}), "dBFS", "")
	t.AddRow("Noise Floor", pair(func(r *processor.AnalysisResult) string {
		return formatOptional(r.NoiseFloorDB, 1)
	}), "dBFS", "")
	t.AddRow("SNR", pair(func(r *processor.AnalysisResult) string {
		return formatOptional(r.SNRDB, 1)
	}), "dB", "")
	t.AddRow("Clipped", pair(func(r *processor.AnalysisResult) string {
		return formatPercent(r.MaxClipRatio(), 3)
	}), "%", "")
	flatness := []float64{math.NaN(), math.NaN()}
	for i, r := range []*processor.AnalysisResult{before, after} {
		if r != nil {
			flatness[i] = r.SpectralFlatness
		}
	}
	t.AddMetricRow("Flatness", flatness, 3, "", "")

	var fundamentals []float64
	if before != nil {
		for _, h := range before.Hum {
			fundamentals = append(fundamentals, h.Fundamental)
		}
	}
	for _, f0 := range fundamentals {
		t.AddRow(fmt.Sprintf("Hum %.0f Hz", f0), pair(func(r *processor.AnalysisResult) string {
			return formatPercent(r.HumStrength(f0), 1)
		}), "%", "")
	}
	return t
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

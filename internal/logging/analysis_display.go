// This file provides the console display for the analyze command.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/processor"
)

// DisplayAnalysisResults writes one clip's analysis, summary, tips and the
// recommended cleaning preset to w.
func DisplayAnalysisResults(w io.Writer, inputPath string, metadata *audio.Metadata, result *processor.AnalysisResult, preset *processor.CleaningPreset) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "ANALYSIS: %s\n", filepath.Base(inputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	if metadata != nil {
		fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(metadata.Duration))
		fmt.Fprintf(w, "Sample Rate: %d Hz\n", metadata.SampleRate)
		fmt.Fprintf(w, "Channels:    %s\n", channelName(metadata.Channels))
		fmt.Fprintf(w, "Bit Depth:   %d\n", metadata.BitDepth)
		fmt.Fprintln(w)
	}
	if result == nil {
		fmt.Fprintln(w, "No analysis available")
		return
	}

	writeAnalysisSection(w, "LEVELS")
	for ch := range result.PeakPerChannel {
		label := "Channel " + fmt.Sprint(ch+1)
		if result.Channels == 1 {
			label = "Mono"
		}
		fmt.Fprintf(w, "  %-14s  peak %s dBFS, RMS %s dBFS, DC %s\n", label+":",
			formatMetricPeak(result.PeakPerChannel[ch], 1),
			formatMetricPeak(result.RMSPerChannel[ch], 1),
			formatMetric(result.MeanPerChannel[ch], 4))
	}
	fmt.Fprintf(w, "  True Peak:      %s dBFS (%s)\n", formatMetricPeak(result.TruePeak, 1), interpretTruePeak(result.TruePeak))
	fmt.Fprintln(w)

	writeAnalysisSection(w, "CLIPPING")
	fmt.Fprintf(w, "  Clipped:        %s%% of samples (worst channel)\n", formatPercent(result.MaxClipRatio(), 3))
	fmt.Fprintf(w, "  Runs:           %d\n", result.ClipRunsTotal)
	fmt.Fprintln(w)

	writeAnalysisSection(w, "NOISE")
	fmt.Fprintf(w, "  Noise Floor:    %s dBFS\n", formatOptional(result.NoiseFloorDB, 1))
	snr := "too short to measure"
	if result.SNRDB != nil {
		snr = interpretSNR(*result.SNRDB)
	}
	fmt.Fprintf(w, "  SNR:            %s dB (%s)\n", formatOptional(result.SNRDB, 1), snr)
	fmt.Fprintf(w, "  Flatness:       %.3f (%s)\n", result.SpectralFlatness, interpretFlatness(result.SpectralFlatness))
	for _, h := range result.Hum {
		fmt.Fprintf(w, "  Hum %.0f Hz:      %s%% (%s)\n", h.Fundamental, formatPercent(h.Strength, 1), interpretHum(h.Strength))
	}
	fmt.Fprintln(w)

	writeAnalysisSection(w, "SILENCE")
	fmt.Fprintf(w, "  Silent:         %s%%\n", formatPercent(result.SilenceRatio, 1))
	fmt.Fprintf(w, "  Leading:        %.2fs\n", result.LeadingSilence)
	fmt.Fprintf(w, "  Trailing:       %.2fs\n", result.TrailingSilence)
	fmt.Fprintln(w)

	writeAnalysisSection(w, "SUMMARY")
	for _, line := range strings.Split(processor.Summary(result), "\n") {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintln(w)

	if tips := GenerateTips(result); len(tips) > 0 {
		writeAnalysisSection(w, "TIPS")
		for _, tip := range tips {
			fmt.Fprintf(w, "  • %s\n", wrapText(tip.Message, 64, "    "))
		}
		fmt.Fprintln(w)
	}

	if preset != nil {
		writeAnalysisSection(w, "RECOMMENDED PRESET")
		writePreset(w, preset, "  ")
	}
}

// writePreset lists the stages a preset enables, in chain order.
func writePreset(w io.Writer, p *processor.CleaningPreset, prefix string) {
	if !p.Enabled {
		fmt.Fprintf(w, "%sCleaning disabled\n", prefix)
		return
	}
	if p.HighpassFreq > 0 {
		fmt.Fprintf(w, "%sHighpass:       %.0f Hz\n", prefix, p.HighpassFreq)
	} else {
		fmt.Fprintf(w, "%sHighpass:       off\n", prefix)
	}
	if p.HumRemoval && len(p.HumFrequencies) > 0 {
		notches := make([]string, 0, len(p.HumFrequencies))
		for i, f := range p.HumFrequencies {
			gain := 0.0
			if i < len(p.HumGains) {
				gain = p.HumGains[i]
			}
			notches = append(notches, fmt.Sprintf("%.0f Hz %+.0f dB", f, gain))
		}
		fmt.Fprintf(w, "%sHum Notches:    %s\n", prefix, strings.Join(notches, ", "))
	} else {
		fmt.Fprintf(w, "%sHum Notches:    off\n", prefix)
	}
	if p.NoiseReduction {
		fmt.Fprintf(w, "%sNoise Reduce:   floor %.0f dB\n", prefix, p.NoiseFloor)
	} else {
		fmt.Fprintf(w, "%sNoise Reduce:   off\n", prefix)
	}
	if p.LoudnessNorm {
		fmt.Fprintf(w, "%sLoudness:       %.0f LUFS, ceiling %.1f dBFS\n", prefix, p.TargetLUFS, p.TruePeak)
	} else {
		fmt.Fprintf(w, "%sLoudness:       off\n", prefix)
	}
	if p.AutoGenerated {
		fmt.Fprintf(w, "%s(derived from analysis)\n", prefix)
	}
}

// writeAnalysisSection writes a section header for analysis output.
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats seconds as "Xh Ym Zs", "Ym Zs" or "Z.Xs".
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}

// channelName returns a human-readable channel layout
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

// =============================================================================
// Interpretation
// =============================================================================

// interpretTruePeak describes headroom left below full scale.
func interpretTruePeak(linear float64) string {
	switch {
	case linear >= 1.0:
		return "over full scale"
	case linear > 0.9:
		return "hot, little headroom"
	case linear > 0.5:
		return "healthy"
	case linear > 0.1:
		return "quiet"
	default:
		return "very quiet"
	}
}

// interpretSNR describes how far speech sits above the noise floor.
// Synthesized speech normally measures well above 30 dB.
func interpretSNR(db float64) string {
	switch {
	case db < 10:
		return "noise-dominated"
	case db < 20:
		return "audible noise"
	case db < 30:
		return "acceptable"
	default:
		return "clean"
	}
}

// interpretFlatness describes tonality vs noisiness (Wiener entropy).
// 0 = pure tone, 1 = white noise.
func interpretFlatness(flatness float64) string {
	switch {
	case flatness < 0.1:
		return "highly tonal"
	case flatness < 0.25:
		return "tonal with some noise, clean voiced"
	case flatness < 0.4:
		return "breathy or lightly noisy"
	case flatness < 0.6:
		return "noisy"
	default:
		return "noise-like"
	}
}

// interpretHum describes a hum series strength relative to the spectral max.
func interpretHum(strength float64) string {
	switch {
	case strength > 0.8:
		return "severe"
	case strength > 0.5:
		return "strong"
	case strength > 0.15:
		return "present"
	default:
		return "negligible"
	}
}

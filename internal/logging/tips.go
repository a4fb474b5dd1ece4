package logging

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linuxmatters/mouthpiece/internal/processor"
)

// Tip is one piece of actionable advice for the synthesis or export
// settings, derived from analysis measurements.
type Tip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "level_too_hot")
}

// MaxTips is the maximum number of tips to return.
const MaxTips = 5

// Tip thresholds
const (
	tipClipRatio       = 0.001
	tipHotPeak         = 0.95
	tipQuietRMSDB      = -35.0
	tipVeryQuietRMSDB  = -45.0
	tipHumStrength     = 0.2
	tipPoorSNR         = 20.0
	tipNoisyFlatness   = 0.5
	tipEdgeSilence     = 1.0 // seconds
	tipDCOffset        = 0.01
	tipMostlySilentPct = 0.6
)

// GenerateTips analyses measurements and returns prioritised suggestions.
func GenerateTips(r *processor.AnalysisResult) []Tip {
	if r == nil {
		return nil
	}

	var tips []Tip
	fired := make(map[string]bool)

	rules := []func(*processor.AnalysisResult) *Tip{
		tipClipping,
		tipLevelTooHot,
		tipLevelTooQuiet,
		tipLevelQuiet,
		tipMainsHum,
		tipPoorSNRRule,
		tipNoisySpectrum,
		tipEdgeSilenceRule,
		tipMostlySilent,
		tipDCOffsetRule,
	}

	for _, rule := range rules {
		if tip := rule(r); tip != nil {
			tips = append(tips, *tip)
			fired[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, fired)

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	if len(tips) > MaxTips {
		tips = tips[:MaxTips]
	}
	return tips
}

// applyExclusions drops tips made redundant by a more specific one.
func applyExclusions(tips []Tip, fired map[string]bool) []Tip {
	var result []Tip
	for _, tip := range tips {
		switch tip.RuleID {
		case "level_too_hot":
			if fired["clipping"] {
				continue
			}
		case "level_quiet":
			if fired["level_too_quiet"] {
				continue
			}
		case "noisy_spectrum":
			if fired["poor_snr"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// loudestRMSDB returns the RMS of the loudest channel in dBFS.
func loudestRMSDB(r *processor.AnalysisResult) float64 {
	loudest := 0.0
	for _, v := range r.RMSPerChannel {
		loudest = max(loudest, v)
	}
	return processor.Dbfs(loudest)
}

func tipClipping(r *processor.AnalysisResult) *Tip {
	worst := r.MaxClipRatio()
	if worst <= tipClipRatio {
		return nil
	}
	return &Tip{
		Priority: 10,
		RuleID:   "clipping",
		Message: fmt.Sprintf("%.2f%% of samples are clipped. Lower the synthesis volume "+
			"or output gain; clipping cannot be fully undone by cleaning.", worst*100),
	}
}

func tipLevelTooHot(r *processor.AnalysisResult) *Tip {
	if r.TruePeak <= tipHotPeak {
		return nil
	}
	return &Tip{
		Priority: 8,
		RuleID:   "level_too_hot",
		Message: fmt.Sprintf("True peak reaches %.1f dBFS. Leave at least 1 dB of "+
			"headroom so lossy encoding does not clip.", processor.Dbfs(r.TruePeak)),
	}
}

func tipLevelTooQuiet(r *processor.AnalysisResult) *Tip {
	rms := loudestRMSDB(r)
	if rms >= tipVeryQuietRMSDB || r.SilenceRatio >= 1 {
		return nil
	}
	return &Tip{
		Priority: 7,
		RuleID:   "level_too_quiet",
		Message: fmt.Sprintf("Speech RMS is only %.0f dBFS. Raise the synthesis volume; "+
			"normalising this much gain also raises the noise floor.", rms),
	}
}

func tipLevelQuiet(r *processor.AnalysisResult) *Tip {
	rms := loudestRMSDB(r)
	if rms >= tipQuietRMSDB || r.SilenceRatio >= 1 {
		return nil
	}
	return &Tip{
		Priority: 4,
		RuleID:   "level_quiet",
		Message:  fmt.Sprintf("Speech RMS is %.0f dBFS, on the quiet side. Loudness normalisation will add gain.", rms),
	}
}

func tipMainsHum(r *processor.AnalysisResult) *Tip {
	var worst processor.HumMeasurement
	for _, h := range r.Hum {
		if h.Strength > worst.Strength {
			worst = h
		}
	}
	if worst.Strength <= tipHumStrength {
		return nil
	}
	return &Tip{
		Priority: 6,
		RuleID:   "mains_hum",
		Message: fmt.Sprintf("%.0f Hz hum at %.0f%% strength. Synthesized audio should not "+
			"carry mains hum; check for a noisy reference clip or playback chain.", worst.Fundamental, worst.Strength*100),
	}
}

func tipPoorSNRRule(r *processor.AnalysisResult) *Tip {
	if r.SNRDB == nil || *r.SNRDB >= tipPoorSNR {
		return nil
	}
	return &Tip{
		Priority: 6,
		RuleID:   "poor_snr",
		Message: fmt.Sprintf("Signal-to-noise ratio is %.1f dB. Enable noise reduction or "+
			"try a different voice or sampling temperature.", *r.SNRDB),
	}
}

func tipNoisySpectrum(r *processor.AnalysisResult) *Tip {
	if r.SpectralFlatness <= tipNoisyFlatness {
		return nil
	}
	return &Tip{
		Priority: 3,
		RuleID:   "noisy_spectrum",
		Message:  fmt.Sprintf("Spectral flatness is %.2f, which sounds breathy or hissy.", r.SpectralFlatness),
	}
}

func tipEdgeSilenceRule(r *processor.AnalysisResult) *Tip {
	longest := math.Max(r.LeadingSilence, r.TrailingSilence)
	if longest <= tipEdgeSilence || r.SilenceRatio >= 1 {
		return nil
	}
	return &Tip{
		Priority: 2,
		RuleID:   "edge_silence",
		Message: fmt.Sprintf("%.1fs of leading and %.1fs of trailing silence. Trim the "+
			"edges so lip-sync timing starts with the speech.", r.LeadingSilence, r.TrailingSilence),
	}
}

func tipMostlySilent(r *processor.AnalysisResult) *Tip {
	if r.SilenceRatio <= tipMostlySilentPct {
		return nil
	}
	return &Tip{
		Priority: 5,
		RuleID:   "mostly_silent",
		Message:  fmt.Sprintf("%.0f%% of the clip is silent. Check that synthesis produced speech.", r.SilenceRatio*100),
	}
}

func tipDCOffsetRule(r *processor.AnalysisResult) *Tip {
	worst := 0.0
	for _, m := range r.MeanPerChannel {
		worst = math.Max(worst, math.Abs(m))
	}
	if worst <= tipDCOffset {
		return nil
	}
	return &Tip{
		Priority: 3,
		RuleID:   "dc_offset",
		Message:  fmt.Sprintf("DC offset of %.3f. The highpass stage removes it; keep it enabled.", worst),
	}
}

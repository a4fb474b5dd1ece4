package processor

import (
	"fmt"
	"strings"
)

// Summary thresholds
const (
	summaryHumStrength = 0.2
	summaryClipRatio   = 0.001
	summaryMinSNR      = 20.0
	summaryMaxPeak     = 0.9
)

// Findings splits an analysis into good points and issues, in report order:
// hum, clipping, SNR, level.
func Findings(result *AnalysisResult) (good, issues []string) {
	for _, h := range result.Hum {
		if h.Strength > summaryHumStrength {
			issues = append(issues, fmt.Sprintf("%.0fHz hum detected (strength %.1f%%)", h.Fundamental, h.Strength*100))
		}
	}

	if worst := result.MaxClipRatio(); worst > summaryClipRatio {
		issues = append(issues, fmt.Sprintf("Clipping detected (%.3f%% of samples)", worst*100))
	} else {
		good = append(good, "No clipping detected")
	}

	if result.SNRDB != nil {
		if *result.SNRDB < summaryMinSNR {
			issues = append(issues, fmt.Sprintf("Low SNR, noticeable noise (%.1f dB)", *result.SNRDB))
		} else {
			good = append(good, fmt.Sprintf("SNR is good (%.1f dB)", *result.SNRDB))
		}
	}

	peakDB := Dbfs(result.TruePeak)
	if result.TruePeak > summaryMaxPeak {
		issues = append(issues, fmt.Sprintf("Level too hot (%.1f dBFS)", peakDB))
	} else {
		good = append(good, fmt.Sprintf("Level is appropriate (%.1f dBFS)", peakDB))
	}
	return good, issues
}

// Summary renders Findings as plain text.
func Summary(result *AnalysisResult) string {
	if result == nil {
		return "No analysis has been run"
	}
	good, issues := Findings(result)

	var sb strings.Builder
	if len(good) > 0 {
		sb.WriteString("Good:\n")
		for _, g := range good {
			sb.WriteString("  • " + g + "\n")
		}
		sb.WriteString("\n")
	}
	if len(issues) > 0 {
		sb.WriteString("Issues:\n")
		for i, issue := range issues {
			sb.WriteString("  • " + issue)
			if i < len(issues)-1 {
				sb.WriteString("\n")
			}
		}
	} else {
		sb.WriteString("No significant quality issues detected")
	}
	return sb.String()
}

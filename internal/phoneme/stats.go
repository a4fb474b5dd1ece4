package phoneme

import (
	"fmt"
	"strings"
)

// VowelStat totals one vowel class.
type VowelStat struct {
	Count         int     `json:"count"`
	TotalDuration float64 `json:"total_duration"`
}

// Stats summarises an event sequence.
type Stats struct {
	TotalPhonemes     int                  `json:"total_phonemes"`
	TotalDuration     float64              `json:"total_duration"`
	VowelDistribution map[string]VowelStat `json:"vowel_distribution"`
	AverageDuration   float64              `json:"average_phoneme_duration"`
	VowelSequence     []string             `json:"vowel_sequence"`
	UniqueVowels      []string             `json:"unique_vowels"` // first-seen order
	EndingCount       int                  `json:"ending_phonemes_count"`
	ProtectionApplied bool                 `json:"ending_protection_applied"`
}

// VowelSequence returns the vowel of every non-silent event in order.
func VowelSequence(events []Event) []string {
	seq := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Vowel != VowelSilence {
			seq = append(seq, ev.Vowel)
		}
	}
	return seq
}

// Stats summarises events. It returns the zero Stats for no events.
func (a *Analyzer) Stats(events []Event) Stats {
	if len(events) == 0 {
		return Stats{}
	}

	s := Stats{
		TotalPhonemes:     len(events),
		VowelDistribution: make(map[string]VowelStat),
		VowelSequence:     VowelSequence(events),
		ProtectionApplied: a.protection.Enabled,
	}
	for _, ev := range events {
		vs, seen := s.VowelDistribution[ev.Vowel]
		if !seen {
			s.UniqueVowels = append(s.UniqueVowels, ev.Vowel)
		}
		vs.Count++
		vs.TotalDuration += ev.Duration
		s.VowelDistribution[ev.Vowel] = vs

		s.TotalDuration += ev.Duration
		if ev.IsEnding {
			s.EndingCount++
		}
	}
	s.AverageDuration = s.TotalDuration / float64(len(events))
	return s
}

// DebugString renders events one per line for troubleshooting.
func (a *Analyzer) DebugString(events []Event) string {
	if len(events) == 0 {
		return "no phoneme events"
	}
	s := a.Stats(events)

	var b strings.Builder
	fmt.Fprintf(&b, "=== phoneme events ===\n")
	fmt.Fprintf(&b, "phonemes: %d\n", s.TotalPhonemes)
	fmt.Fprintf(&b, "duration: %.2fs\n", s.TotalDuration)
	fmt.Fprintf(&b, "endings:  %d\n\n", s.EndingCount)

	for i, ev := range events {
		mark := ""
		if ev.IsEnding {
			mark = " [ending]"
		}
		fmt.Fprintf(&b, "  %2d: %4s -> %s (%.2fs-%.2fs, intensity %.2f)%s\n",
			i, ev.Phoneme, ev.Vowel, ev.Start, ev.End(), ev.Intensity, mark)
	}

	protection := "off"
	if a.protection.Enabled {
		protection = "on"
	}
	fmt.Fprintf(&b, "\nvowels: %s\n", strings.Join(s.VowelSequence, " "))
	fmt.Fprintf(&b, "ending protection: %s", protection)
	return b.String()
}

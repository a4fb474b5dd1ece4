package phoneme

import "github.com/linuxmatters/mouthpiece/internal/logger"

// isEnding reports whether the phoneme at i closes the utterance: it is the
// last one, only pauses follow it, or it sits within the tail window and is
// not itself a pause.
func isEnding(symbols []string, i, tailWindow int) bool {
	if i >= len(symbols)-1 {
		return true
	}

	onlyPauses := true
	for _, p := range symbols[i+1:] {
		if p != "" && !isPause(p) {
			onlyPauses = false
			break
		}
	}
	if onlyPauses {
		return true
	}

	return len(symbols)-i-1 <= tailWindow && !isPause(symbols[i])
}

// protect lengthens and boosts ending events. Every later event moves by
// the time added before it, so the sequence stays contiguous.
func (a *Analyzer) protect(events []Event) []Event {
	if !a.protection.Enabled || len(events) == 0 {
		return events
	}

	symbols := make([]string, len(events))
	for i, ev := range events {
		symbols[i] = ev.Phoneme
	}

	out := make([]Event, len(events))
	var shift float64
	for i, ev := range events {
		ev.Start += shift
		ev.IsEnding = false

		if isEnding(symbols, i, a.protection.TailWindow) && ev.Vowel != VowelSilence {
			if ev.Duration < a.protection.MinDuration {
				shift += a.protection.MinDuration - ev.Duration
				ev.Duration = a.protection.MinDuration
			}
			ev.Intensity = min(1, ev.Intensity*a.protection.IntensityBoost)
			ev.IsEnding = true
		}
		out[i] = ev
	}

	if shift > 0 {
		logger.Debugf("ending protection added %.2fs", shift)
	}
	return out
}

// OptimizeForTTS rescales events to fill audioDuration, restarting the
// timeline at zero. Ending events keep at least 80% of the protected
// minimum. A non-positive duration returns the events unchanged.
func (a *Analyzer) OptimizeForTTS(events []Event, audioDuration float64) []Event {
	if len(events) == 0 || audioDuration <= 0 {
		return events
	}

	var estimated float64
	for _, ev := range events {
		estimated += ev.Duration
	}
	if estimated <= 0 {
		return events
	}
	scale := audioDuration / estimated
	logger.Debugf("phoneme timing %.2fs -> %.2fs (x%.2f)", estimated, audioDuration, scale)

	out := make([]Event, len(events))
	var t float64
	for i, ev := range events {
		d := ev.Duration * scale
		if ev.IsEnding && a.protection.Enabled {
			d = max(d, a.protection.MinDuration*0.8)
		}
		ev.Start = t
		ev.Duration = d
		out[i] = ev
		t += d
	}
	return out
}
